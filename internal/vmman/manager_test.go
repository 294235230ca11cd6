package vmman

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testPage = Size(4096)

// gapStrategies lists every GapStrategy a scenario or property test must
// run under: the randomized and scenario suites exercise both the
// default linear backend and the google/btree-indexed one so neither
// backend's first-fit result is ever only asserted for the other.
var gapStrategies = []GapStrategy{GapStrategyLinear, GapStrategyIndexed}

func newTestManager(t *testing.T, pages int, opts ...Option) *ManagedRange {
	t.Helper()
	length := Size(pages) * testPage
	backing := make([]byte, length)
	allOpts := append([]Option{WithBacking(backing), WithScrub(true)}, opts...)
	m, err := NewManagedRange(0, length, allOpts...)
	require.NoError(t, err)
	require.True(t, m.IsSane())
	return m
}

func TestInitRejectsUnalignedBase(t *testing.T) {
	_, err := NewManagedRange(1, Size(16)*testPage)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, InvalidParameter, verr.Kind)
}

func TestInitRejectsNonPageMultipleLength(t *testing.T) {
	_, err := NewManagedRange(0, 100)
	require.Error(t, err)
}

func TestInitRejectsZeroLength(t *testing.T) {
	_, err := NewManagedRange(0, 0)
	require.Error(t, err)
}

func TestInitRejectsOverflow(t *testing.T) {
	_, err := NewManagedRange(^Addr(0)-Addr(testPage)+1, Size(2)*testPage)
	require.Error(t, err)
}

func TestInitEstablishesFrontiers(t *testing.T) {
	m := newTestManager(t, 64)
	require.Equal(t, m.brk, m.start)
	require.Equal(t, m.mapFrontier, m.end)
	require.Equal(t, nilIdx, m.headIdx)
}

func TestSbrkQueryDoesNotMutate(t *testing.T) {
	m := newTestManager(t, 64)
	before := m.brk
	got, err := m.Sbrk(0)
	require.NoError(t, err)
	require.Equal(t, before, got)
	require.Equal(t, before, m.brk)
}

func TestSbrkAdvancesAndReturnsOldValue(t *testing.T) {
	m := newTestManager(t, 64)
	old, err := m.Sbrk(int64(testPage))
	require.NoError(t, err)
	require.Equal(t, m.start, old)
	require.Equal(t, m.start+Addr(testPage), m.brk)
}

func TestSbrkShrinkIsPermitted(t *testing.T) {
	m := newTestManager(t, 64)
	_, err := m.Sbrk(int64(testPage) * 4)
	require.NoError(t, err)
	old, err := m.Sbrk(-int64(testPage) * 2)
	require.NoError(t, err)
	require.Equal(t, m.start+Addr(testPage)*4, old)
	require.Equal(t, m.start+Addr(testPage)*2, m.brk)
}

func TestSbrkFailsPastMap(t *testing.T) {
	m := newTestManager(t, 4)
	_, err := m.Sbrk(int64(m.mapFrontier-m.start) + 1)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, OutOfMemory, verr.Kind)
}

func TestBrkRejectsBelowStartOrAtOrAboveMap(t *testing.T) {
	m := newTestManager(t, 4)
	require.Error(t, m.Brk(m.start-1))
	require.Error(t, m.Brk(m.mapFrontier))
	require.NoError(t, m.Brk(m.mapFrontier-1))
}

func TestMapRejectsBadProtAndFlags(t *testing.T) {
	m := newTestManager(t, 4)
	_, err := m.Map(0, testPage, ProtRead, FlagAnonymous|FlagPrivate)
	require.Error(t, err)
	_, err = m.Map(0, testPage, ProtRead|ProtWrite|ProtExec, FlagAnonymous|FlagPrivate)
	require.Error(t, err)
	_, err = m.Map(0, testPage, ProtRead|ProtWrite, FlagAnonymous)
	require.Error(t, err)
	_, err = m.Map(0, testPage, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate|FlagShared)
	require.Error(t, err)
}

func TestMapRejectsNonZeroHint(t *testing.T) {
	m := newTestManager(t, 4)
	_, err := m.Map(m.start, testPage, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.Error(t, err)
}

func TestMapZeroesFreshMemory(t *testing.T) {
	length := Size(4) * testPage
	backing := make([]byte, length)
	for i := range backing {
		backing[i] = 0xAB
	}
	m, err := NewManagedRange(0, length, WithBacking(backing))
	require.NoError(t, err)

	addr, err := m.Map(0, testPage, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)
	off := addr - m.base
	for i := Addr(0); i < Addr(testPage); i++ {
		require.Equal(t, byte(0), m.backing[off+i])
	}
}

func TestUnmapRejectsSpanningMultipleRegions(t *testing.T) {
	m := newTestManager(t, 64)
	x, err := m.Map(0, testPage*3, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)
	// Split [x, x+3p) into two disjoint regions by freeing the middle page.
	require.NoError(t, m.Unmap(x+Addr(testPage), testPage))

	err = m.Unmap(x, testPage*3)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, InvalidParameter, verr.Kind)
}
