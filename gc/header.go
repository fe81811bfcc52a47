// ABOUTME: Allocation header shared by every heap space
// ABOUTME: Explicit state discriminant instead of flag bits aliasing a forwarding pointer

package gc

import (
	"unsafe"

	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
)

const (
	// headerSize prefixes every allocation. Payloads start 16-byte aligned.
	headerSize = 16
	// granule is the nursery allocation and alignment unit.
	granule = 16
)

var _ [headerSize - unsafe.Sizeof(header{})]byte

// allocState is the discriminant of the header: it says how the rest of
// the header must be read.
type allocState uint8

const (
	// stateFree: no allocation here (free adult slot, never-used memory).
	stateFree allocState = iota
	// stateLive: flags, kind and size describe a live object.
	stateLive
	// stateForwarded: the object was evacuated; fwd holds the new payload.
	stateForwarded
)

type gcFlags uint8

const (
	flagMarked gcFlags = 1 << iota
	flagPinned
	flagRemembered
	// flagScanned records that the evacuating pass already queued a
	// pinned nursery object.
	flagScanned
)

type header struct {
	state allocState
	flags gcFlags
	kind  Kind
	_     uint8
	size  uint32
	// fwd is the forwarding address once state is stateForwarded and the
	// next free slot while an adult slot sits on a free list. It is unused
	// for live objects.
	fwd uintptr
}

func hdrAt(addr uintptr) *header {
	return (*header)(arena.Ptr(addr))
}

func (h *header) init(size uintptr, kind Kind) {
	*h = header{state: stateLive, kind: kind, size: uint32(size)}
}

func (h *header) live() bool { return h.state == stateLive }

func (h *header) has(f gcFlags) bool { return h.flags&f != 0 }

func (h *header) set(f gcFlags) {
	assert.That(h.state == stateLive, "setting flags on a %d header", h.state)
	h.flags |= f
}

func (h *header) unset(f gcFlags) {
	h.flags &^= f
}

// forwarded returns the new payload address of an evacuated object.
func (h *header) forwarded() (uintptr, bool) {
	if h.state != stateForwarded {
		return 0, false
	}
	return h.fwd, true
}

// forwardTo turns a live header into a forwarding record. The transition
// is one-way: a forwarded header is never read as flags again.
func (h *header) forwardTo(payload uintptr) {
	assert.That(h.state == stateLive, "forwarding a header in state %d", h.state)
	h.state = stateForwarded
	h.flags = 0
	h.fwd = payload
}

// footprint is the number of nursery bytes the allocation occupies.
func (h *header) footprint() uintptr {
	return headerSize + arena.AlignUp(uintptr(h.size), granule)
}

// Ref is the address of an allocation's payload. The zero Ref is nil.
type Ref uintptr

// IsNil reports whether r is the nil reference.
func (r Ref) IsNil() bool { return r == 0 }

// Slot returns the i'th word of the payload viewed as a reference.
// Stores through it bypass the write barrier: storing a heap address into
// an adult or large object must go through Heap.WriteRef, or the nursery
// target can be reclaimed by the next minor collection.
func (r Ref) Slot(i int) *Ref {
	return (*Ref)(arena.Ptr(uintptr(r) + uintptr(i)*arena.WordSize))
}

// Word returns the i'th word of the payload. As with Slot, stores of heap
// addresses into adult or large objects must use Heap.WriteWord instead.
func (r Ref) Word(i int) *uintptr {
	return arena.Word(uintptr(r) + uintptr(i)*arena.WordSize)
}

// Bytes returns the first n bytes of the payload.
func (r Ref) Bytes(n uintptr) []byte {
	return arena.Bytes(uintptr(r), n)
}

func refsAt(addr, n uintptr) []Ref {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*Ref)(arena.Ptr(addr)), n)
}

// Kind selects how the collector finds references inside an object.
type Kind uint8

const (
	// KindConservative objects are scanned word by word as potential pointers.
	KindConservative Kind = iota
	// KindRefs objects hold only exact references (or nil) in every word.
	KindRefs
	// KindData objects hold no references.
	KindData

	firstCustomKind
)

// Space identifies which part of the heap an allocation lives in.
type Space uint8

const (
	SpaceNone Space = iota
	SpaceNursery
	SpaceAdult
	SpaceLarge
)

func (s Space) String() string {
	switch s {
	case SpaceNursery:
		return "nursery"
	case SpaceAdult:
		return "adult"
	case SpaceLarge:
		return "large"
	default:
		return "none"
	}
}

// Allocation describes the allocation owning some address, as recovered
// from its header.
type Allocation struct {
	Ref       Ref
	Size      uintptr
	Space     Space
	Kind      Kind
	Marked    bool
	Pinned    bool
	Forwarded bool
	// Forward is the new location when Forwarded is set.
	Forward Ref
}
