// ABOUTME: Tests for loading collector configuration from TOML
// ABOUTME: Defaults, overrides, size parsing and validation failures

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/nurserygc/gc"
)

func TestDefaultMatchesHeapDefaults(t *testing.T) {
	o, err := Default().Options()
	require.NoError(t, err)
	assert.Equal(t, gc.DefaultOptions(), o)
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(`
[nursery]
size = "4MB"
fragment_size = "8KB"
collect_ratio = 0.5

[collector]
major_trigger = "64MB"

[log]
verbosity = 2
path = "gc.log"
`))
	require.NoError(t, err)

	o, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, uintptr(4<<20), o.NurserySize)
	assert.Equal(t, uintptr(8<<10), o.FragmentSize)
	assert.Equal(t, gc.DefaultOptions().MinFragmentSize, o.MinFragmentSize)
	assert.Equal(t, 0.5, o.CollectRatio)
	assert.Equal(t, uint64(64<<20), o.MajorTrigger)
	assert.Equal(t, gc.DefaultOptions().AdultSize, o.AdultSize)
	assert.Equal(t, 2, c.Log.Verbosity)
	assert.Equal(t, "gc.log", c.Log.Path)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"bad size", "[nursery]\nsize = \"lots\"", ErrInvalidSize},
		{"fractional bytes", "[nursery]\nsize = \"1.0001KB\"", ErrInvalidSize},
		{"unknown key", "[nursery]\nsise = \"4MB\"", ErrUnknownKey},
		{"fragment too small", "[nursery]\nfragment_size = \"1KB\"", gc.ErrInvalidOptions},
		{"min above standard", "[nursery]\nmin_fragment_size = \"16KB\"", gc.ErrInvalidOptions},
		{"ratio", "[nursery]\ncollect_ratio = 1.5", gc.ErrInvalidOptions},
		{"unaligned block", "[adult]\nblock_size = \"65000\"", gc.ErrInvalidOptions},
		{"syntax", "[nursery\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gc.toml")
	require.NoError(t, os.WriteFile(path, []byte("[large]\nsize = \"1GB\"\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	o, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, uintptr(1<<30), o.LargeSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"512", 512},
		{"16B", 16},
		{"64KB", 64 << 10},
		{"32MB", 32 << 20},
		{"1.5GB", 3 << 29},
		{" 4gb ", 4 << 30},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if assert.NoError(t, err, tt.in) {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
	_, err := ParseSize("")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestFormatSizeRoundTrips(t *testing.T) {
	for _, n := range []uint64{0, 16, 1000, 8192, 8 << 20, 10_000_000, 16 << 30} {
		got, err := ParseSize(FormatSize(n))
		require.NoError(t, err, FormatSize(n))
		assert.Equal(t, n, got, FormatSize(n))
	}
	assert.Equal(t, "32MB", FormatSize(32<<20))
}
