// ABOUTME: Offline inspector for heap snapshots written by the collector
// ABOUTME: Prints space and kind breakdowns, top retainers, paths to roots and garbage

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/inhies/go-bytesize"

	"github.com/prateek/nurserygc/graph"
	"github.com/prateek/nurserygc/heapdump"
)

func main() {
	var (
		top         = flag.Int("top", 10, "number of top retainers to list")
		paths       = flag.String("paths", "", "object ID (hex or decimal) to print paths to roots for")
		maxPaths    = flag.Int("max-paths", 3, "maximum paths to print")
		unreachable = flag.Bool("unreachable", false, "list unreachable objects")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: gcinspect [flags] dump\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	g, hdr, err := heapdump.OpenFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "gcinspect:", err)
		os.Exit(1)
	}

	out := os.Stdout
	fmt.Fprintf(out, "snapshot %s from %s taken %s\n\n", orNone(hdr.ID), orNone(hdr.Source), hdr.Created.Format("2006-01-02 15:04:05"))
	summarize(out, g)
	retainers(out, g, *top)

	if *paths != "" {
		id, err := strconv.ParseUint(*paths, 0, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "gcinspect: bad object ID:", err)
			os.Exit(2)
		}
		printPaths(out, g, graph.ObjID(id), *maxPaths)
	}
	if *unreachable {
		printUnreachable(out, g)
	}
}

func size(n uint64) string { return bytesize.New(float64(n)).String() }

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func summarize(w io.Writer, g graph.Graph) {
	s := graph.Summarize(g)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "objects\t%d\t%s\n", s.Total.Objects, size(s.Total.Bytes))
	fmt.Fprintf(tw, "reachable\t%d\t%s\n", s.Reachable.Objects, size(s.Reachable.Bytes))
	fmt.Fprintf(tw, "unreachable\t%d\t%s\n", s.Unreachable.Objects, size(s.Unreachable.Bytes))
	fmt.Fprintf(tw, "pinned\t%d\t%s\n", s.Pinned.Objects, size(s.Pinned.Bytes))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "space\tobjects\tbytes")
	for _, k := range graph.SortedKeys(s.BySpace) {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", k, s.BySpace[k].Objects, size(s.BySpace[k].Bytes))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "kind\tobjects\tbytes")
	for _, k := range graph.SortedKeys(s.ByKind) {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", k, s.ByKind[k].Objects, size(s.ByKind[k].Bytes))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func retainers(w io.Writer, g graph.Graph, n int) {
	if n <= 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "object\tspace\tkind\tsize\tretained")
	for _, r := range graph.TopRetainers(graph.RetainedSize(g), n) {
		obj := g.GetObject(r.ID)
		if obj == nil {
			continue
		}
		fmt.Fprintf(tw, "%#x\t%s\t%s\t%s\t%s\n", uint64(r.ID), obj.Space, obj.Kind, size(obj.Size), size(r.Retained))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printPaths(w io.Writer, g graph.Graph, id graph.ObjID, n int) {
	if g.GetObject(id) == nil {
		fmt.Fprintf(w, "no object %#x in the snapshot\n", uint64(id))
		return
	}
	found := graph.PathsToRoots(g, id, n)
	if len(found) == 0 {
		fmt.Fprintf(w, "%#x is unreachable\n", uint64(id))
		return
	}
	for i, p := range found {
		fmt.Fprintf(w, "path %d:", i+1)
		for _, step := range p.IDs {
			fmt.Fprintf(w, " %#x", uint64(step))
		}
		fmt.Fprintln(w, " (root)")
	}
	fmt.Fprintln(w)
}

func printUnreachable(w io.Writer, g graph.Graph) {
	dead := graph.Unreachable(g)
	fmt.Fprintf(w, "%d unreachable objects\n", len(dead))
	for _, id := range dead {
		obj := g.GetObject(id)
		fmt.Fprintf(w, "  %#x %s %s %s\n", uint64(id), obj.Space, obj.Kind, size(obj.Size))
	}
}
