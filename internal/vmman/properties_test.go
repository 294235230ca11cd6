package vmman

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// Universal properties from spec.md §8, checked by randomized traces.
// Properties 1-5 (alignment, disjointness, ordering, gap separation,
// frontier coherence) are exactly what the sanity predicate verifies, so
// the randomized trace below leans on IsSane after every step rather
// than re-deriving each check by hand. Properties 6-9 get focused tests.
// Every property runs under both GapStrategy backends: the randomized
// trace is the test most likely to notice the two backends disagreeing
// on which gap first-fit picks.

func TestPropertyRandomizedTraceStaysSane(t *testing.T) {
	for _, strat := range gapStrategies {
		t.Run(strat.String(), func(t *testing.T) { propertyRandomizedTraceStaysSane(t, strat) })
	}
}

func propertyRandomizedTraceStaysSane(t *testing.T, strat GapStrategy) {
	m := newTestManager(t, 512, WithGapStrategy(strat))
	rng := rand.New(rand.NewSource(1))

	var live []Addr
	sizes := map[Addr]Size{}

	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			addr := live[idx]
			err := m.Unmap(addr, sizes[addr])
			require.NoError(t, err)
			delete(sizes, addr)
			live[idx] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			length := Size(1+rng.Intn(8)) * testPage
			addr, err := m.Map(0, length, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
			if err != nil {
				var verr *Error
				require.ErrorAs(t, err, &verr)
				require.Equal(t, OutOfMemory, verr.Kind)
				continue
			}
			live = append(live, addr)
			sizes[addr] = length
		}
		require.Truef(t, m.IsSane(), "sanity violated after step %d", i)
	}
}

func TestPropertyZeroOnMap(t *testing.T) {
	for _, strat := range gapStrategies {
		t.Run(strat.String(), func(t *testing.T) { propertyZeroOnMap(t, strat) })
	}
}

func propertyZeroOnMap(t *testing.T, strat GapStrategy) {
	length := Size(16) * testPage
	backing := make([]byte, length)
	for i := range backing {
		backing[i] = 0xFF
	}
	m, err := NewManagedRange(0, length, WithBacking(backing), WithGapStrategy(strat))
	require.NoError(t, err)

	addr, err := m.Map(0, testPage*2, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)
	off := addr - m.base
	for i := Addr(0); i < Addr(testPage)*2; i++ {
		require.Equal(t, byte(0), backing[off+i])
	}
}

func TestPropertyNoOpRemapIsIdempotent(t *testing.T) {
	for _, strat := range gapStrategies {
		t.Run(strat.String(), func(t *testing.T) { propertyNoOpRemapIsIdempotent(t, strat) })
	}
}

func propertyNoOpRemapIsIdempotent(t *testing.T, strat GapStrategy) {
	m := newTestManager(t, 64, WithGapStrategy(strat))
	addr, err := m.Map(0, testPage*4, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
	require.NoError(t, err)

	got, err := m.Remap(addr, testPage*4, testPage*4, MayMove)
	require.NoError(t, err)
	require.Equal(t, addr, got)
	require.True(t, m.IsSane())
}

func TestPropertyRoundTrip(t *testing.T) {
	for _, strat := range gapStrategies {
		t.Run(strat.String(), func(t *testing.T) { propertyRoundTrip(t, strat) })
	}
}

func propertyRoundTrip(t *testing.T, strat GapStrategy) {
	m := newTestManager(t, 128, WithGapStrategy(strat))
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 200; i++ {
		n := Size(1+rng.Intn(16)) * testPage
		addr, err := m.Map(0, n, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
		require.NoError(t, err)
		require.NoError(t, m.Unmap(addr, alignUpSize(n, m.pageSize)))
		require.True(t, m.IsSane())
	}
}

func TestPropertyConservationWhenBrkUnchanged(t *testing.T) {
	for _, strat := range gapStrategies {
		t.Run(strat.String(), func(t *testing.T) { propertyConservationWhenBrkUnchanged(t, strat) })
	}
}

func propertyConservationWhenBrkUnchanged(t *testing.T, strat GapStrategy) {
	m := newTestManager(t, 64, WithGapStrategy(strat))
	total := Size(m.end - m.start)

	var sizes []Size
	for i := 0; i < 4; i++ {
		n := Size(2) * testPage
		_, err := m.Map(0, n, ProtRead|ProtWrite, FlagAnonymous|FlagPrivate)
		require.NoError(t, err)
		sizes = append(sizes, n)
	}

	var liveBytes Size
	for _, n := range sizes {
		liveBytes += n
	}
	headroom := Size(m.mapFrontier - m.brk)
	require.Equal(t, total, liveBytes+headroom)
}
