// ABOUTME: Tests for arena reservation, commit and raw memory helpers
// ABOUTME: Arenas are real mappings, so each test uses a small one

package arena

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prateek/nurserygc/internal/assert"
)

func TestReserveIsMonotonic(t *testing.T) {
	a := New("test", 16*PageSize)
	require.Equal(t, a.Start(), a.End())
	require.False(t, a.Contains(a.Start()))

	first := a.Reserve(PageSize)
	second := a.Reserve(2 * PageSize)

	require.Equal(t, a.Start(), first)
	require.Equal(t, first+PageSize, second)
	require.Equal(t, 3*PageSize, a.Committed())
	require.True(t, a.Contains(first))
	require.True(t, a.Contains(second+2*PageSize-1))
	require.False(t, a.Contains(second+2*PageSize))
	require.True(t, a.Covers(a.Limit()-1))
	require.False(t, a.Covers(a.Limit()))
}

func TestCommittedMemoryIsWritable(t *testing.T) {
	a := New("test", 4*PageSize)
	base := a.Reserve(PageSize)

	*Word(base) = 0xdeadbeef
	*Word(base + WordSize) = 42
	require.Equal(t, uintptr(0xdeadbeef), *Word(base))
	require.Equal(t, []uintptr{0xdeadbeef, 42}, Words(base, 2))

	Copy(base+64, base, 2*WordSize)
	require.Equal(t, uintptr(42), *Word(base + 64 + WordSize))

	Zero(base, 2*WordSize)
	require.Equal(t, uintptr(0), *Word(base))
	require.Equal(t, uintptr(0xdeadbeef), *Word(base + 64))
}

func TestGrowTo(t *testing.T) {
	a := New("test", 8*PageSize)
	a.GrowTo(a.Start() + PageSize + 1)
	require.Equal(t, 2*PageSize, a.Committed())

	// Already covered: no-op.
	a.GrowTo(a.Start() + PageSize)
	require.Equal(t, 2*PageSize, a.Committed())
}

func TestExhaustionIsFatal(t *testing.T) {
	a := New("small", 2*PageSize)
	a.Reserve(2 * PageSize)

	defer func() {
		r := recover()
		require.IsType(t, &assert.FatalError{}, r)
	}()
	a.Reserve(PageSize)
	t.Fatal("reserve past the limit should not return")
}

func TestUnalignedReserveIsFatal(t *testing.T) {
	a := New("small", 2*PageSize)
	require.Panics(t, func() { a.Reserve(PageSize / 2) })
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uintptr
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, AlignUp(tt.n, tt.align))
	}
}
