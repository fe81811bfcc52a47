// ABOUTME: Process-wide heap: nursery, adult and large arenas plus thread fragments
// ABOUTME: Routes allocation requests by size and owns the collection triggers

// Package gc is a generational, partially moving garbage collector for an
// interpreter and its compiled code. Small objects are bump allocated from
// thread-owned nursery fragments and evacuated to the adult generation by
// minor collections; objects that are only reachable through ambiguous
// words (native stacks, registers, conservatively scanned objects) are
// pinned in place instead. Major collections mark the whole heap without
// moving anything and sweep the adult and large-object spaces.
package gc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/tliron/commonlog"

	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
	"github.com/prateek/nurserygc/threading"
)

var log = commonlog.GetLogger("nurserygc.gc")

// Options fixes the heap geometry and collection thresholds.
type Options struct {
	// NurserySize is the reserved size of the young generation.
	NurserySize uintptr
	// FragmentSize is the standard fragment size; it must be able to hold
	// the largest small object.
	FragmentSize uintptr
	// MinFragmentSize is the smallest piece worth handing out after
	// fragments are split around pinned objects.
	MinFragmentSize uintptr
	// CollectRatio is the fraction of the nursery that may be handed out
	// before the next fragment request triggers a minor collection.
	CollectRatio float64

	AdultSize      uintptr
	AdultBlockSize uintptr
	LargeSize      uintptr

	// MajorTrigger is the number of bytes allocated between major collections.
	MajorTrigger uint64
	// ScanLimit bounds a single conservative scan range.
	ScanLimit uintptr
}

// DefaultOptions returns the geometry used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		NurserySize:     32 << 20,
		FragmentSize:    8192,
		MinFragmentSize: 512,
		CollectRatio:    0.9,
		AdultSize:       4 << 30,
		AdultBlockSize:  64 << 10,
		LargeSize:       16 << 30,
		MajorTrigger:    10_000_000,
		ScanLimit:       1 << 30,
	}
}

// ErrInvalidOptions is wrapped by every error Validate returns.
var ErrInvalidOptions = errors.New("invalid heap options")

// Validate reports whether the options describe a usable heap.
func (o Options) Validate() error {
	var problem string
	switch {
	case o.FragmentSize < maxNurseryFootprint:
		problem = fmt.Sprintf("fragment size %d cannot hold a %d-byte object", o.FragmentSize, maxNurseryFootprint)
	case o.FragmentSize%granule != 0 || o.MinFragmentSize%granule != 0:
		problem = fmt.Sprintf("fragment sizes must be multiples of %d", granule)
	case o.MinFragmentSize == 0 || o.MinFragmentSize > o.FragmentSize:
		problem = fmt.Sprintf("minimum fragment size %d out of range", o.MinFragmentSize)
	case o.NurserySize < o.FragmentSize:
		problem = fmt.Sprintf("nursery of %d bytes is smaller than one fragment", o.NurserySize)
	case o.AdultBlockSize%arena.PageSize != 0 || o.AdultBlockSize < headerSize+MaxSmallSize:
		problem = fmt.Sprintf("adult block size %d must be page aligned and hold the largest class", o.AdultBlockSize)
	case o.AdultSize < o.AdultBlockSize:
		problem = fmt.Sprintf("adult space of %d bytes is smaller than one block", o.AdultSize)
	case o.LargeSize < arena.PageSize:
		problem = fmt.Sprintf("large space of %d bytes is smaller than a page", o.LargeSize)
	case o.CollectRatio <= 0 || o.CollectRatio > 1:
		problem = fmt.Sprintf("collect ratio %v out of range", o.CollectRatio)
	case o.MajorTrigger == 0:
		problem = "major trigger must be positive"
	case o.ScanLimit < arena.WordSize:
		problem = fmt.Sprintf("scan limit %d is smaller than a word", o.ScanLimit)
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidOptions, problem)
}

// RootFunc reports the exact roots held by a collaborator, such as the live
// variable table of an interpreter frame. It may be called more than once
// per collection and must report the same roots each time.
type RootFunc func(v Visitor)

// TraceFunc reports every reference field of an object of a custom kind.
type TraceFunc func(v Visitor, obj Ref)

type kindInfo struct {
	name  string
	trace TraceFunc
}

// Heap is the collector's process-wide state. It is created once, before
// the first allocation, and never torn down.
type Heap struct {
	opts Options

	nurseryArena *arena.Arena
	adultArena   *arena.Arena
	largeArena   *arena.Arena

	nursery *NurseryRoom
	starts  *startBitmap
	adult   *adultSpace
	large   *largeSpace

	sched *threading.Scheduler

	threadsMu sync.Mutex
	threads   map[uint64]*Thread

	kindsMu sync.RWMutex
	kinds   []kindInfo
	// numKinds mirrors len(kinds) for the allocation path.
	numKinds atomic.Int32

	rootsMu    sync.Mutex
	permanent  []*Ref
	sources    map[int]RootFunc
	nextSource int

	rememberedMu sync.Mutex
	remembered   []uintptr

	majorMu    sync.Mutex
	sinceMajor atomic.Uint64
	// exitedAllocated holds the byte totals of threads that have exited.
	exitedAllocated uint64

	statsMu sync.Mutex
	stats   Stats
}

// New reserves the heap's arenas and returns an empty heap.
func New(opts Options) *Heap {
	if err := opts.Validate(); err != nil {
		assert.Fatalf("%v", err)
	}
	h := &Heap{
		opts:         opts,
		nurseryArena: arena.New("nursery", opts.NurserySize),
		adultArena:   arena.New("adult", opts.AdultSize),
		largeArena:   arena.New("large", opts.LargeSize),
		sched:        threading.NewScheduler(),
		threads:      make(map[uint64]*Thread),
		sources:      make(map[int]RootFunc),
		kinds: []kindInfo{
			KindConservative: {name: "conservative"},
			KindRefs:         {name: "refs"},
			KindData:         {name: "data"},
		},
	}
	h.numKinds.Store(int32(len(h.kinds)))
	h.nursery = newNurseryRoom(h.nurseryArena, opts.FragmentSize, opts.MinFragmentSize, opts.CollectRatio)
	h.starts = newStartBitmap(h.nurseryArena.Start(), h.nurseryArena.Limit()-h.nurseryArena.Start())
	h.adult = newAdultSpace(h.adultArena, opts.AdultBlockSize)
	h.large = newLargeSpace(h.largeArena)
	log.Infof("heap: nursery %s, adult %s, large %s, major collection every %s",
		bytesize.New(float64(opts.NurserySize)), bytesize.New(float64(opts.AdultSize)),
		bytesize.New(float64(opts.LargeSize)), bytesize.New(float64(opts.MajorTrigger)))
	return h
}

// Options returns the options the heap was built with.
func (h *Heap) Options() Options { return h.opts }

// Scheduler returns the scheduler owning the execution token.
func (h *Heap) Scheduler() *threading.Scheduler { return h.sched }

// Nursery exposes the nursery room.
func (h *Heap) Nursery() *NurseryRoom { return h.nursery }

// RegisterKind adds an object layout whose references are reported by trace.
func (h *Heap) RegisterKind(name string, trace TraceFunc) Kind {
	h.kindsMu.Lock()
	defer h.kindsMu.Unlock()
	if len(h.kinds) > 255 {
		assert.Fatalf("too many object kinds registering %q", name)
	}
	h.kinds = append(h.kinds, kindInfo{name: name, trace: trace})
	h.numKinds.Store(int32(len(h.kinds)))
	return Kind(len(h.kinds) - 1)
}

func (h *Heap) kindRegistered(k Kind) bool {
	return int32(k) < h.numKinds.Load()
}

// KindName returns the name a kind was registered under.
func (h *Heap) KindName(k Kind) string {
	h.kindsMu.RLock()
	defer h.kindsMu.RUnlock()
	if int(k) >= len(h.kinds) {
		return "unknown"
	}
	return h.kinds[k].name
}

// Thread is a mutator thread registered with the heap. It owns at most one
// nursery fragment at a time; only the thread itself allocates from it.
type Thread struct {
	*threading.Thread
	heap *Heap

	frag    Fragment
	hasFrag bool
	// allocated is the thread's running total of requested bytes. Only the
	// thread adds to it; Stats reads it.
	allocated atomic.Uint64
	// pending counts bytes allocated since the last flush into the shared
	// major-collection counter.
	pending uint64
}

// RegisterThread records a new mutator thread and its stack. It must be
// called before the thread allocates or holds heap references.
func (h *Heap) RegisterThread(name string, stackWords int) *Thread {
	t := &Thread{Thread: h.sched.Register(name, stackWords), heap: h}
	h.threadsMu.Lock()
	h.threads[t.ID()] = t
	h.threadsMu.Unlock()
	return t
}

// Exit deregisters the thread. Its fragment is abandoned until the next
// collection releases it.
func (t *Thread) Exit() {
	h := t.heap
	h.threadsMu.Lock()
	delete(h.threads, t.ID())
	h.exitedAllocated += t.allocated.Load()
	h.threadsMu.Unlock()
	t.hasFrag = false
	h.sinceMajor.Add(t.pending)
	t.pending = 0
	t.Thread.Exit()
}

// Fragment returns the fragment the thread currently owns.
func (t *Thread) Fragment() (Fragment, bool) {
	return t.frag, t.hasFrag
}

// Heap returns the heap the thread allocates from.
func (t *Thread) Heap() *Heap { return t.heap }

// Alloc returns n zeroed bytes whose words are scanned conservatively.
// It never fails: running out of memory aborts the process, and so does a
// request above MaxAllocSize.
func (t *Thread) Alloc(n uintptr) Ref {
	return t.AllocKind(n, KindConservative)
}

// AllocKind returns n zeroed bytes of the given kind, which must be built in
// or returned by RegisterKind.
func (t *Thread) AllocKind(n uintptr, kind Kind) Ref {
	assert.That(n > 0, "zero-byte allocation")
	if n == 0 {
		n = 1
	}
	if kind >= firstCustomKind && !t.heap.kindRegistered(kind) {
		assert.Fatalf("allocation of unregistered kind %d", kind)
	}
	t.allocated.Add(uint64(n))
	if n <= MaxSmallSize {
		return t.allocSmall(n, kind)
	}
	return t.allocLarge(n, kind)
}

func (t *Thread) allocSmall(n uintptr, kind Kind) Ref {
	h := t.heap
	full := headerSize + arena.AlignUp(n, granule)
	h.majorCollectIfNeeded(t, full)

	if !t.hasFrag || !t.frag.CanAllocate(full) {
		t.refill(full)
	}
	addr := t.frag.Allocate(full)
	arena.Zero(addr+headerSize, full-headerSize)
	hdrAt(addr).init(n, kind)
	h.starts.set(addr)
	return Ref(addr + headerSize)
}

// refill is the allocation slow path: it may run a minor collection and
// then checks out a new fragment.
func (t *Thread) refill(full uintptr) {
	h := t.heap
	t.hasFrag = false
	if h.nursery.ShouldCollect(full) {
		h.MinorCollect(t)
	}
	f, ok := h.nursery.AllocateFragment(full)
	if !ok {
		assert.Fatalf("nursery exhausted: no fragment of %d bytes after collection", full)
	}
	t.frag = f
	t.hasFrag = true
}

func (t *Thread) allocLarge(n uintptr, kind Kind) Ref {
	h := t.heap
	h.majorCollectIfNeeded(t, n)
	return Ref(h.large.alloc(n, kind) + headerSize)
}

// majorCollectIfNeeded runs a major collection once the shared byte
// counter crosses the trigger. Threads accumulate bytes locally and flush
// them once they exceed a quarter of the trigger.
func (h *Heap) majorCollectIfNeeded(t *Thread, n uintptr) {
	trigger := h.opts.MajorTrigger
	if h.sinceMajor.Load() >= trigger {
		h.majorMu.Lock()
		if h.sinceMajor.Load() >= trigger {
			h.majorCollect(t)
		}
		h.majorMu.Unlock()
	}
	t.pending += uint64(n)
	if t.pending > trigger/4 {
		h.sinceMajor.Add(t.pending)
		t.pending = 0
	}
}

// bytesAllocated sums the totals of live and exited threads.
func (h *Heap) bytesAllocated() uint64 {
	h.threadsMu.Lock()
	defer h.threadsMu.Unlock()
	n := h.exitedAllocated
	for _, t := range h.threads {
		n += t.allocated.Load()
	}
	return n
}

// findHeader recovers the header owning addr, which may point anywhere
// inside the payload.
func (h *Heap) findHeader(addr uintptr) (uintptr, Space, bool) {
	switch {
	case h.nurseryArena.Contains(addr):
		if addr < h.nurseryArena.Start()+headerSize {
			return 0, SpaceNone, false
		}
		hdr, ok := h.starts.find(addr-headerSize, maxNurseryFootprint)
		if !ok {
			return 0, SpaceNone, false
		}
		hd := hdrAt(hdr)
		if hd.state == stateFree || addr < hdr+headerSize || addr >= hdr+headerSize+uintptr(hd.size) {
			return 0, SpaceNone, false
		}
		return hdr, SpaceNursery, true
	case h.adultArena.Contains(addr):
		hdr, ok := h.adult.lookup(addr)
		return hdr, SpaceAdult, ok
	case h.largeArena.Contains(addr):
		hdr, ok := h.large.lookup(addr)
		return hdr, SpaceLarge, ok
	}
	return 0, SpaceNone, false
}

func (h *Heap) inHeap(addr uintptr) bool {
	return h.nurseryArena.Contains(addr) || h.adultArena.Contains(addr) || h.largeArena.Contains(addr)
}

func (h *Heap) spaceOf(addr uintptr) Space {
	switch {
	case h.nurseryArena.Contains(addr):
		return SpaceNursery
	case h.adultArena.Contains(addr):
		return SpaceAdult
	case h.largeArena.Contains(addr):
		return SpaceLarge
	}
	return SpaceNone
}

// Lookup returns the allocation containing addr, if any.
func (h *Heap) Lookup(addr uintptr) (Allocation, bool) {
	hdr, sp, ok := h.findHeader(addr)
	if !ok {
		return Allocation{}, false
	}
	hd := hdrAt(hdr)
	a := Allocation{
		Ref:   Ref(hdr + headerSize),
		Size:  uintptr(hd.size),
		Space: sp,
		Kind:  hd.kind,
	}
	if fwd, ok := hd.forwarded(); ok {
		a.Forwarded = true
		a.Forward = Ref(fwd)
		return a, true
	}
	a.Marked = hd.has(flagMarked)
	a.Pinned = hd.has(flagPinned)
	return a, true
}

// requireWorldStopped aborts unless t holds the execution token, which
// means every other mutator thread is parked at a safe point.
func (h *Heap) requireWorldStopped(t *Thread) {
	if t == nil || !t.HoldsToken() {
		assert.Fatalf("collection requires the calling thread to hold the execution token")
	}
}

func (h *Heap) dropFragments() {
	h.threadsMu.Lock()
	defer h.threadsMu.Unlock()
	for _, t := range h.threads {
		t.frag = Fragment{}
		t.hasFrag = false
	}
}

// rebuildStarts forgets every nursery allocation except the pinned ones,
// which must stay discoverable from interior pointers.
func (h *Heap) rebuildStarts() {
	h.starts.reset()
	for _, p := range h.nursery.Pins() {
		if h.nurseryArena.Covers(p.Addr) && hdrAt(p.Addr).live() {
			h.starts.set(p.Addr)
		}
	}
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Microsecond)
}
