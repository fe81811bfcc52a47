// ABOUTME: Root package: version information and a configured collector runtime
// ABOUTME: Wires configuration, logging, the heap and snapshot dumps together

// Package nurserygc is a generational, partially moving garbage collector
// for a language runtime whose native stacks cannot be scanned precisely.
// The collector itself lives in package gc; this package assembles it from
// a config.Config and adds snapshot dumping for offline analysis with the
// graph and heapdump packages.
package nurserygc

import (
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/prateek/nurserygc/config"
	"github.com/prateek/nurserygc/gc"
	"github.com/prateek/nurserygc/heapdump"
)

// Version is the semantic version of the collector.
const Version = "0.1.0-dev"

// Runtime is a heap built from a configuration.
type Runtime struct {
	Config config.Config
	Heap   *gc.Heap
}

// New validates cfg, configures logging and reserves the heap.
func New(cfg config.Config) (*Runtime, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, fmt.Errorf("heap configuration: %w", err)
	}
	var path *string
	if cfg.Log.Path != "" {
		path = &cfg.Log.Path
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
	return &Runtime{Config: cfg, Heap: gc.New(opts)}, nil
}

// Dump snapshots the heap and writes it in the named format. t must hold
// the execution token.
func (r *Runtime) Dump(t *gc.Thread, w io.Writer, format, source string) (heapdump.Header, error) {
	g := r.Heap.Snapshot(t)
	hdr := heapdump.NewHeader(source)
	hdr.Objects = g.NumObjects()
	if err := heapdump.Write(w, format, g, hdr); err != nil {
		return heapdump.Header{}, fmt.Errorf("writing %s dump: %w", format, err)
	}
	return hdr, nil
}
