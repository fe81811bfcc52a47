// ABOUTME: Tests for size class selection

package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassFor(t *testing.T) {
	tests := []struct {
		n    uintptr
		size uintptr
	}{
		{1, 16}, {16, 16}, {17, 32}, {100, 112}, {129, 160}, {1025, 1280}, {2048, 2048},
	}
	for _, tt := range tests {
		c, ok := classFor(tt.n)
		require.True(t, ok)
		require.Equal(t, tt.size, sizes[c], "request of %d bytes", tt.n)
	}
	_, ok := classFor(MaxSmallSize + 1)
	require.False(t, ok)
}

func TestSizeClassesFitSlotsAligned(t *testing.T) {
	for i, s := range sizes {
		require.Zero(t, s%granule)
		if i > 0 {
			require.Greater(t, s, sizes[i-1])
		}
	}
	require.Equal(t, uintptr(MaxSmallSize), sizes[numClasses-1])
}
