package workload

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/vmman/internal/vmman"
)

func newTestManager(t *testing.T, pages int) *vmman.ManagedRange {
	t.Helper()
	length := vmman.Size(pages) * vmman.DefaultPageSize
	m, err := vmman.NewManagedRange(0, length)
	require.NoError(t, err)
	return m
}

func TestGeneratorDrivesManagerSanely(t *testing.T) {
	m := newTestManager(t, 4096)
	g := NewGenerator(DefaultConfig(7))

	for i := 0; i < 500; i++ {
		req := g.Next()
		ok, err := Apply(g, m, req)
		g.Release(req)
		if !ok {
			require.Error(t, err)
		}
		require.True(t, m.IsSane())
	}
}

func TestGeneratorIsDeterministicForAFixedSeed(t *testing.T) {
	a := NewGenerator(DefaultConfig(42))
	b := NewGenerator(DefaultConfig(42))

	for i := 0; i < 50; i++ {
		ra := a.Next()
		rb := b.Next()
		require.Equal(t, ra.Op, rb.Op)
		require.Equal(t, ra.Length, rb.Length)
		a.Release(ra)
		b.Release(rb)
	}
}

func TestDrawLengthStaysWithinLargestSizeClass(t *testing.T) {
	g := NewGenerator(DefaultConfig(3))
	for i := 0; i < 1000; i++ {
		n := g.drawLength()
		require.LessOrEqual(t, n, vmman.Size(pagesPerClass[SizeClassHuge])*vmman.DefaultPageSize)
		require.Greater(t, n, vmman.Size(0))
	}
}
