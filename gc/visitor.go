// ABOUTME: The traversal engine shared by every collector phase and root source
// ABOUTME: Exact and conservative entry points over an explicit worklist

package gc

import (
	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
)

// Visitor is how root sources and object layouts report references.
//
// Visit is for slots known to hold a heap reference or nil; the collector
// may rewrite the slot when the object moves. VisitPotential is for
// arbitrary words found by a conservative scan; a word that does not point
// into a live allocation is ignored, and the object it does point into
// never moves during the current cycle.
type Visitor interface {
	Visit(slot *Ref)
	VisitPotential(word uintptr)
	VisitRange(slots []Ref)
	VisitPotentialRange(words []uintptr)
}

type phase uint8

const (
	// phaseMinorMark marks the nursery-reachable set and pins everything
	// reached through an ambiguous word.
	phaseMinorMark phase = iota
	// phaseEvacuate copies unpinned survivors to the adult generation and
	// redirects every exact slot to the new copy.
	phaseEvacuate
	// phaseMajorMark marks the whole heap; nothing moves.
	phaseMajorMark
)

// traversal drives a worklist of discovered but unscanned objects. It is
// iterative so deep or cyclic graphs cannot exhaust the goroutine stack.
type traversal struct {
	heap  *Heap
	phase phase
	work  []uintptr

	// owner is the header of the object being scanned, 0 while roots are.
	owner      uintptr
	ownerSpace Space

	enqueued      int
	pinned        int
	promoted      int
	promotedBytes uintptr
	// nurseryLive collects marked nursery headers during a major mark.
	nurseryLive []uintptr
	// remembered collects non-nursery objects still pointing into the nursery.
	remembered []uintptr
}

func (h *Heap) newTraversal(p phase) *traversal {
	return &traversal{heap: h, phase: p}
}

func (tr *traversal) Visit(slot *Ref) {
	p := uintptr(*slot)
	if p == 0 {
		return
	}
	hdr, sp, ok := tr.heap.findHeader(p)
	if !ok {
		assert.That(!tr.heap.inHeap(p), "exact reference %#x does not point to an allocation", p)
		return
	}
	switch tr.phase {
	case phaseMinorMark:
		if sp == SpaceNursery {
			tr.mark(hdr, sp)
		}
	case phaseMajorMark:
		tr.mark(hdr, sp)
	case phaseEvacuate:
		if sp != SpaceNursery {
			return
		}
		moved := tr.evacuate(hdr)
		if moved != hdr {
			*slot = Ref(moved + (p - hdr))
			return
		}
	}
	if sp == SpaceNursery {
		tr.remember()
	}
}

func (tr *traversal) VisitPotential(word uintptr) {
	hdr, sp, ok := tr.heap.findHeader(word)
	if !ok {
		return
	}
	switch tr.phase {
	case phaseMinorMark:
		if sp != SpaceNursery {
			return
		}
		tr.pin(hdr)
		tr.mark(hdr, sp)
	case phaseMajorMark:
		tr.mark(hdr, sp)
	case phaseEvacuate:
		if sp != SpaceNursery {
			return
		}
		hd := hdrAt(hdr)
		if _, fwd := hd.forwarded(); fwd {
			assert.Fatalf("ambiguous word %#x refers to an evacuated object", word)
		}
		tr.pin(hdr)
		tr.evacuate(hdr)
	}
	if sp == SpaceNursery {
		tr.remember()
	}
}

func (tr *traversal) VisitRange(slots []Ref) {
	for i := range slots {
		tr.Visit(&slots[i])
	}
}

func (tr *traversal) VisitPotentialRange(words []uintptr) {
	for _, w := range words {
		tr.VisitPotential(w)
	}
}

// mark sets the mark bit and queues the object the first time it is seen.
func (tr *traversal) mark(hdr uintptr, sp Space) {
	hd := hdrAt(hdr)
	assert.That(hd.live(), "marking a header in state %d", hd.state)
	if hd.has(flagMarked) {
		return
	}
	hd.set(flagMarked)
	tr.push(hdr)
	if sp == SpaceNursery && tr.phase == phaseMajorMark {
		tr.nurseryLive = append(tr.nurseryLive, hdr)
	}
}

func (tr *traversal) pin(hdr uintptr) {
	hd := hdrAt(hdr)
	if hd.has(flagPinned) {
		return
	}
	hd.set(flagPinned)
	tr.heap.nursery.PinMinor(hdr, hd.footprint())
	tr.pinned++
}

// evacuate is the forward-or-redirect step: it returns the header the
// object lives at after this cycle, copying it on first sight unless it is
// pinned.
func (tr *traversal) evacuate(hdr uintptr) uintptr {
	hd := hdrAt(hdr)
	if fwd, ok := hd.forwarded(); ok {
		return fwd - headerSize
	}
	if hd.has(flagPinned) {
		if !hd.has(flagScanned) {
			hd.set(flagScanned)
			tr.push(hdr)
		}
		return hdr
	}
	size := uintptr(hd.size)
	moved := tr.heap.adult.alloc(size, hd.kind)
	arena.Copy(moved+headerSize, hdr+headerSize, size)
	hd.forwardTo(moved + headerSize)
	tr.promoted++
	tr.promotedBytes += size
	tr.push(moved)
	return moved
}

// remember records the current owner when it lives outside the nursery and
// still refers into it after this step.
func (tr *traversal) remember() {
	if tr.phase == phaseMinorMark || tr.owner == 0 || tr.ownerSpace == SpaceNursery {
		return
	}
	hd := hdrAt(tr.owner)
	if hd.has(flagRemembered) {
		return
	}
	hd.set(flagRemembered)
	tr.remembered = append(tr.remembered, tr.owner)
}

func (tr *traversal) push(hdr uintptr) {
	tr.work = append(tr.work, hdr)
	tr.enqueued++
}

// scanObject reports the references of one object with it as the owner.
func (tr *traversal) scanObject(hdr uintptr) {
	tr.owner = hdr
	tr.ownerSpace = tr.heap.spaceOf(hdr)
	tr.heap.traceObject(tr, hdr)
	tr.owner = 0
	tr.ownerSpace = SpaceNone
}

// drain scans queued objects until the worklist is empty.
func (tr *traversal) drain() {
	for len(tr.work) > 0 {
		hdr := tr.work[len(tr.work)-1]
		tr.work = tr.work[:len(tr.work)-1]
		tr.scanObject(hdr)
	}
}

// traceObject reports every reference inside the object at hdr to v.
func (h *Heap) traceObject(v Visitor, hdr uintptr) {
	hd := hdrAt(hdr)
	payload := hdr + headerSize
	words := uintptr(hd.size) / arena.WordSize
	switch hd.kind {
	case KindData:
	case KindRefs:
		v.VisitRange(refsAt(payload, words))
	case KindConservative:
		v.VisitPotentialRange(arena.Words(payload, words))
	default:
		h.kindsMu.RLock()
		if int(hd.kind) >= len(h.kinds) {
			h.kindsMu.RUnlock()
			assert.Fatalf("object at %#x has unregistered kind %d", payload, hd.kind)
		}
		k := h.kinds[hd.kind]
		h.kindsMu.RUnlock()
		if k.trace != nil {
			k.trace(v, Ref(payload))
		}
	}
}
