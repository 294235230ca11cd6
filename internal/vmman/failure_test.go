package vmman

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Both secondary-allocation failure sites (unmap's middle split, remap's
// right-excess split) need a descriptor pool with zero spare slots. The
// pool is always sized to one descriptor per page of the *whole* range,
// including the handful of pages its own bookkeeping reserves at the
// front (see NewManagedRange's descBytes/start computation), so usable
// address space is always at least one page short of descriptor
// capacity: a real workload can never simultaneously hold enough live
// regions to bump the pool all the way to its end. These tests starve
// the pool directly to exercise that branch instead.

func TestUnmapMiddleSplitFailsWhenPoolExhausted(t *testing.T) {
	m := newTestManager(t, 8)
	x, err := m.Map(0, testPage*4, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)

	m.pool.next = m.pool.end

	err = m.Unmap(x+Addr(testPage), testPage)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, Failure, verr.Kind)
}

func TestRemapRightExcessSplitFailsWhenPoolExhausted(t *testing.T) {
	m := newTestManager(t, 8)
	x, err := m.Map(0, testPage*4, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)

	m.pool.next = m.pool.end

	// The descriptor actually spans 4 pages, but this call only claims
	// the first 2 as its own allocation and shrinks that claim to 1,
	// which requires splitting the last 2 pages off into a fresh
	// descriptor to preserve them.
	_, err = m.Remap(x, testPage*2, testPage, MayMove)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, Failure, verr.Kind)
}

func TestCoveredTracksFiredBranches(t *testing.T) {
	m := newTestManager(t, 64)
	require.False(t, m.Covered("unmap.full"))
	require.False(t, m.Covered("no.such.branch"))

	x, err := m.Map(0, testPage, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)
	require.True(t, m.Covered("map.fresh"))

	require.NoError(t, m.Unmap(x, testPage))
	require.True(t, m.Covered("unmap.full"))
	require.False(t, m.Covered("unmap.middle"))
}
