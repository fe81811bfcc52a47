// ABOUTME: Tests for the root package, verifying the version and runtime assembly
// ABOUTME: Bad configuration is rejected before any memory is reserved

package nurserygc_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek/nurserygc"
	"github.com/prateek/nurserygc/config"
)

func TestVersion(t *testing.T) {
	assert.True(t, strings.HasPrefix(nurserygc.Version, "0."), "version %q", nurserygc.Version)
}

func smallConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
[nursery]
size = "1MB"
[adult]
size = "16MB"
[large]
size = "16MB"
[log]
verbosity = 0
`))
	require.NoError(t, err)
	return cfg
}

func TestNewRuntime(t *testing.T) {
	rt, err := nurserygc.New(smallConfig(t))
	require.NoError(t, err)
	assert.Equal(t, uintptr(1<<20), rt.Heap.Options().NurserySize)
}

func TestNewRejectsBadOptions(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Nursery.FragmentSize = "1KB"
	_, err := nurserygc.New(cfg)
	assert.Error(t, err)
}
