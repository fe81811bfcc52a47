// ABOUTME: Root finding: permanent roots, native stacks and collaborator roots
// ABOUTME: Stacks and registers are scanned conservatively, everything else exactly

package gc

import (
	"slices"

	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
	"github.com/prateek/nurserygc/threading"
)

// RegisterPermanentRoot makes ref reachable for the rest of the process.
// The returned slot always holds the object's current address.
func (h *Heap) RegisterPermanentRoot(ref Ref) *Ref {
	h.rootsMu.Lock()
	defer h.rootsMu.Unlock()
	if assert.Enabled {
		hdr, _, ok := h.findHeader(uintptr(ref))
		assert.That(ok && hdr+headerSize == uintptr(ref), "permanent root %#x is not an allocation", uintptr(ref))
		// Compare by header so an object registered before it moved is
		// still recognised at its new address.
		for _, slot := range h.permanent {
			other, _, ok := h.findHeader(uintptr(*slot))
			assert.That(!ok || other != hdr, "permanent root %#x registered twice", uintptr(ref))
		}
	}
	slot := new(Ref)
	*slot = ref
	h.permanent = append(h.permanent, slot)
	return slot
}

// AddRootSource registers a callback exposing exact roots, typically an
// interpreter frame's live variables. The returned function removes it.
func (h *Heap) AddRootSource(fn RootFunc) (remove func()) {
	h.rootsMu.Lock()
	defer h.rootsMu.Unlock()
	id := h.nextSource
	h.nextSource++
	h.sources[id] = fn
	return func() {
		h.rootsMu.Lock()
		defer h.rootsMu.Unlock()
		delete(h.sources, id)
	}
}

// PinObject keeps ref in place, and alive, until the next major
// collection, for references that cannot be rewritten such as addresses
// embedded in compiled code.
func (h *Heap) PinObject(ref Ref) {
	hdr, _, ok := h.findHeader(uintptr(ref))
	if !ok {
		assert.That(false, "pinning %#x which is not an allocation", uintptr(ref))
		return
	}
	hd := hdrAt(hdr)
	if hd.has(flagPinned) {
		return
	}
	hd.set(flagPinned)
	h.nursery.PinMajor(hdr, hd.footprint())
}

// scanRoots reports every root to v: permanent roots, the stacks of the
// executing thread and all parked threads, collaborator roots and major pins.
func (h *Heap) scanRoots(v Visitor, current *Thread) {
	h.rootsMu.Lock()
	permanent := slices.Clone(h.permanent)
	ids := make([]int, 0, len(h.sources))
	for id := range h.sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	sources := make([]RootFunc, len(ids))
	for i, id := range ids {
		sources[i] = h.sources[id]
	}
	h.rootsMu.Unlock()

	for _, slot := range permanent {
		v.Visit(slot)
	}

	h.scanThread(v, current.Thread)
	for _, t := range h.sched.Threads() {
		if t != current.Thread {
			h.scanThread(v, t)
		}
	}

	for _, fn := range sources {
		fn(v)
	}

	for _, p := range h.nursery.MajorPins() {
		v.VisitPotential(p.Addr + headerSize)
	}
}

// scanThread conservatively scans a thread's recorded stack, from its stack
// pointer to its bound, and its register checkpoint.
func (h *Heap) scanThread(v Visitor, t *threading.Thread) {
	h.scanWords(v, t.Stack().Live())
	h.scanWords(v, t.Registers()[:])
}

func (h *Heap) scanWords(v Visitor, words []uintptr) {
	if n := uintptr(len(words)) * arena.WordSize; n > h.opts.ScanLimit {
		assert.Fatalf("asked to scan %.1fGB -- a bug?", float64(n)/(1<<30))
	}
	v.VisitPotentialRange(words)
}

// ScanRange conservatively reports every word of an extra native range,
// such as a signal frame, to v.
func (h *Heap) ScanRange(v Visitor, words []uintptr) {
	h.scanWords(v, words)
}
