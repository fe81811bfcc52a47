// ABOUTME: Stress driver: several mutator threads churning the heap under the collector
// ABOUTME: Verifies every surviving list after each step and reports collector statistics

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/prateek/nurserygc"
	"github.com/prateek/nurserygc/config"
	"github.com/prateek/nurserygc/gc"
	"github.com/prateek/nurserygc/heapdump"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		threads    = flag.Int("threads", 4, "mutator threads")
		steps      = flag.Int("steps", 2000, "steps per mutator")
		seed       = flag.Int64("seed", 1, "random seed")
		dumpPath   = flag.String("dump", "", "write a heap snapshot here when done")
		format     = flag.String("format", "cbor", "snapshot format ("+strings.Join(heapdump.Formats(), ", ")+")")
		verbose    = flag.Int("v", -1, "log verbosity (overrides the configuration)")
	)
	flag.Parse()

	if err := run(*configPath, *threads, *steps, *seed, *dumpPath, *format, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "gcstress:", err)
		os.Exit(1)
	}
}

func run(configPath string, threads, steps int, seed int64, dumpPath, format string, verbose int) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if verbose >= 0 {
		cfg.Log.Verbosity = verbose
	}
	rt, err := nurserygc.New(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < threads; i++ {
		m := newMutator(rt.Heap, fmt.Sprintf("mutator-%d", i), seed+int64(i))
		g.Go(func() error { return m.run(ctx, steps) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	th := rt.Heap.RegisterThread("main", 64)
	th.Acquire()
	defer func() {
		th.Release()
		th.Exit()
	}()
	printStats(rt.Heap.Stats(), elapsed)

	if dumpPath != "" {
		f, err := os.Create(dumpPath)
		if err != nil {
			return err
		}
		hdr, err := rt.Dump(th, f, format, "gcstress")
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Printf("snapshot %s: %d objects written to %s\n", hdr.ID, hdr.Objects, dumpPath)
	}
	return nil
}

// checkFormat rejects an unregistered snapshot format before any work is done.
func checkFormat(format string) error {
	formats := heapdump.Formats()
	if !slices.Contains(formats, format) {
		return fmt.Errorf("%w %q (available: %s)", heapdump.ErrUnknownFormat, format, strings.Join(formats, ", "))
	}
	return nil
}

func printStats(s gc.Stats, elapsed time.Duration) {
	size := func(n uint64) string { return bytesize.New(float64(n)).String() }
	fmt.Printf("ran for %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("allocated       %s\n", size(s.BytesAllocated))
	fmt.Printf("minor           %d (last pause %s, %d pinned)\n", s.MinorCollections, s.LastMinorPause, s.LastMinorPinned)
	fmt.Printf("major           %d (last pause %s)\n", s.MajorCollections, s.LastMajorPause)
	fmt.Printf("promoted        %d objects, %s\n", s.ObjectsPromoted, size(s.BytesPromoted))
	fmt.Printf("freed           %d objects, %s\n", s.ObjectsFreed, size(s.BytesFreed))
	fmt.Printf("adult live      %d objects, %s of %s committed\n", s.AdultLiveObjects, size(s.AdultLiveBytes), size(s.AdultCommitted))
	fmt.Printf("large live      %d objects, %s of %s committed\n", s.LargeObjects, size(s.LargeLiveBytes), size(s.LargeCommitted))
	fmt.Printf("nursery         %s committed, %s free\n", size(s.NurseryCommitted), size(s.NurseryFree))
}
