// ABOUTME: Heap snapshots as object graphs
// ABOUTME: Records every allocation, its outgoing references and the current roots

package gc

import (
	"slices"

	"github.com/prateek/nurserygc/graph"
)

// edgeRecorder is a Visitor that only collects the allocations it is shown.
type edgeRecorder struct {
	heap  *Heap
	edges []graph.ObjID
}

func (r *edgeRecorder) Visit(slot *Ref) {
	r.record(uintptr(*slot))
}

func (r *edgeRecorder) VisitPotential(word uintptr) {
	r.record(word)
}

func (r *edgeRecorder) VisitRange(slots []Ref) {
	for _, s := range slots {
		r.record(uintptr(s))
	}
}

func (r *edgeRecorder) VisitPotentialRange(words []uintptr) {
	for _, w := range words {
		r.record(w)
	}
}

func (r *edgeRecorder) record(addr uintptr) {
	if addr == 0 {
		return
	}
	hdr, _, ok := r.heap.findHeader(addr)
	if !ok || !hdrAt(hdr).live() {
		return
	}
	r.edges = append(r.edges, graph.ObjID(hdr+headerSize))
}

func (r *edgeRecorder) take() []graph.ObjID {
	ids := r.edges
	r.edges = nil
	slices.Sort(ids)
	return slices.Compact(ids)
}

// forEachAllocation calls fn for every live allocation in the heap.
func (h *Heap) forEachAllocation(fn func(hdr uintptr, sp Space)) {
	h.starts.forEach(func(hdr uintptr) {
		if hdrAt(hdr).live() {
			fn(hdr, SpaceNursery)
		}
	})
	h.adult.forEach(func(hdr uintptr) { fn(hdr, SpaceAdult) })
	h.large.forEach(func(hdr uintptr) { fn(hdr, SpaceLarge) })
}

// Snapshot records the heap as an object graph: one node per live
// allocation, keyed by payload address, with its outgoing references and
// the set of objects the roots refer to. Nursery objects that became
// garbage since the last collection are included; graph.Unreachable finds
// them. t must hold the execution token.
func (h *Heap) Snapshot(t *Thread) *graph.MemGraph {
	h.requireWorldStopped(t)
	g := graph.NewMemGraph()
	rec := &edgeRecorder{heap: h}
	h.forEachAllocation(func(hdr uintptr, sp Space) {
		hd := hdrAt(hdr)
		h.traceObject(rec, hdr)
		g.AddObject(&graph.Object{
			ID:     graph.ObjID(hdr + headerSize),
			Kind:   h.KindName(hd.kind),
			Space:  sp.String(),
			Size:   uint64(hd.size),
			Pinned: hd.has(flagPinned),
			Ptrs:   rec.take(),
		})
	})
	h.scanRoots(rec, t)
	g.SetRoots(graph.Roots{IDs: rec.take()})
	return g
}
