// ABOUTME: Field access and the generational write barrier
// ABOUTME: Old objects that store nursery addresses join the remembered set

package gc

import (
	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
)

// WriteRef stores val into the i'th word of obj.
func (h *Heap) WriteRef(obj Ref, i int, val Ref) {
	h.checkField(obj, i)
	*obj.Slot(i) = val
	h.barrier(obj, uintptr(val))
}

// WriteWord stores an untyped word into the i'th word of obj.
func (h *Heap) WriteWord(obj Ref, i int, w uintptr) {
	h.checkField(obj, i)
	*obj.Word(i) = w
	h.barrier(obj, w)
}

// ReadRef loads the i'th word of obj as a reference.
func (h *Heap) ReadRef(obj Ref, i int) Ref {
	h.checkField(obj, i)
	return *obj.Slot(i)
}

func (h *Heap) checkField(obj Ref, i int) {
	if !assert.Enabled {
		return
	}
	a, ok := h.Lookup(uintptr(obj))
	assert.That(ok && !a.Forwarded, "field access on %#x which is not a live allocation", uintptr(obj))
	assert.That(i >= 0 && uintptr(i+1)*arena.WordSize <= a.Size, "field %d out of range for %d-byte object", i, a.Size)
}

func (h *Heap) barrier(obj Ref, w uintptr) {
	if !h.nurseryArena.Contains(w) || h.nurseryArena.Contains(uintptr(obj)) {
		return
	}
	hdr, _, ok := h.findHeader(uintptr(obj))
	if !ok {
		return
	}
	h.rememberedMu.Lock()
	defer h.rememberedMu.Unlock()
	hd := hdrAt(hdr)
	if hd.has(flagRemembered) {
		return
	}
	hd.set(flagRemembered)
	h.remembered = append(h.remembered, hdr)
}

// takeRemembered empties the remembered set, clearing the flag on every
// member so the next pass can rebuild it.
func (h *Heap) takeRemembered() []uintptr {
	h.rememberedMu.Lock()
	defer h.rememberedMu.Unlock()
	old := h.remembered
	h.remembered = nil
	for _, hdr := range old {
		hdrAt(hdr).unset(flagRemembered)
	}
	return old
}

func (h *Heap) setRemembered(hdrs []uintptr) {
	h.rememberedMu.Lock()
	defer h.rememberedMu.Unlock()
	h.remembered = hdrs
}

// Remembered returns the number of objects in the remembered set.
func (h *Heap) Remembered() int {
	h.rememberedMu.Lock()
	defer h.rememberedMu.Unlock()
	return len(h.remembered)
}
