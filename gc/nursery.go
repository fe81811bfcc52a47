// ABOUTME: Nursery partitioning into thread-owned bump allocation fragments
// ABOUTME: Tracks pinned objects and re-carves fragments around them each cycle

package gc

import (
	"slices"
	"sync"

	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
)

// Fragment is a contiguous nursery range owned by one thread for bump
// allocation. Fragments never overlap and are reclaimed only between
// collection cycles.
type Fragment struct {
	start, end uintptr
}

// Start returns the next free address in the fragment.
func (f Fragment) Start() uintptr { return f.start }

// End returns the end of the fragment.
func (f Fragment) End() uintptr { return f.end }

// Size returns the bytes still available.
func (f Fragment) Size() uintptr { return f.end - f.start }

// CanAllocate reports whether n more bytes fit.
func (f *Fragment) CanAllocate(n uintptr) bool {
	return f.start+n <= f.end
}

// Allocate bumps the fragment by n bytes and returns the old start.
func (f *Fragment) Allocate(n uintptr) uintptr {
	assert.That(f.CanAllocate(n), "fragment %#x-%#x cannot fit %d bytes", f.start, f.end, n)
	res := f.start
	f.start += n
	return res
}

// Pin records that the allocation whose header is at Addr and which spans
// Len bytes must not move this cycle.
type Pin struct {
	Addr uintptr
	Len  uintptr
}

// NurseryRoom hands out nursery fragments and re-derives them from the
// standard grid around pinned survivors when a collection releases them.
type NurseryRoom struct {
	arena        *arena.Arena
	fragSize     uintptr
	minFragSize  uintptr
	collectAt    uintptr
	maxFragments int

	mu        sync.Mutex
	fragments []Fragment
	next      int
	handedOut uintptr

	minorPins []Pin
	majorPins []Pin
}

func newNurseryRoom(a *arena.Arena, fragSize, minFragSize uintptr, collectRatio float64) *NurseryRoom {
	capacity := a.Limit() - a.Start()
	r := &NurseryRoom{
		arena:        a,
		fragSize:     fragSize,
		minFragSize:  minFragSize,
		collectAt:    uintptr(float64(capacity) * collectRatio),
		maxFragments: int(capacity / minFragSize),
	}
	r.fragments = r.carve(nil)
	return r
}

// AllocateFragment checks out the next unused fragment that can hold need
// bytes, committing arena pages to cover it. It reports false when no such
// fragment is left before the next release.
func (r *NurseryRoom) AllocateFragment(need uintptr) (Fragment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := r.next; i < len(r.fragments); i++ {
		if r.fragments[i].Size() < need {
			continue
		}
		// Smaller fragments stay behind the cursor for smaller requests.
		r.fragments[r.next], r.fragments[i] = r.fragments[i], r.fragments[r.next]
		f := r.fragments[r.next]
		r.next++
		r.handedOut += f.Size()
		r.arena.GrowTo(f.end)
		return f, true
	}
	return Fragment{}, false
}

// ShouldCollect reports whether the nursery is occupied enough, or too
// fragmented to serve need bytes, that a minor collection should run before
// the next fragment is handed out.
func (r *NurseryRoom) ShouldCollect(need uintptr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handedOut >= r.collectAt {
		return true
	}
	for _, f := range r.fragments[r.next:] {
		if f.Size() >= need {
			return false
		}
	}
	return true
}

// PinMinor keeps an allocation in place until the end of this minor cycle.
func (r *NurseryRoom) PinMinor(addr, n uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minorPins = append(r.minorPins, Pin{Addr: addr, Len: n})
}

// PinMajor keeps an allocation in place until the next major collection.
func (r *NurseryRoom) PinMajor(addr, n uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.majorPins = append(r.majorPins, Pin{Addr: addr, Len: n})
}

// ReleaseMinor reclaims every fragment and clears the minor pins. Objects
// pinned toward the next major collection stay pinned.
func (r *NurseryRoom) ReleaseMinor() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release()
	r.unpin(r.minorPins)
	r.minorPins = r.minorPins[:0]
	for _, p := range r.majorPins {
		if hd := hdrAt(p.Addr); hd.live() {
			hd.unset(flagMarked | flagScanned)
			hd.set(flagPinned)
		}
	}
}

// ReleaseMajor reclaims every fragment and clears both pin lists.
func (r *NurseryRoom) ReleaseMajor() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release()
	r.unpin(r.minorPins)
	r.unpin(r.majorPins)
	r.minorPins = r.minorPins[:0]
	r.majorPins = r.majorPins[:0]
}

func (r *NurseryRoom) unpin(pins []Pin) {
	for _, p := range pins {
		hdrAt(p.Addr).unset(flagPinned | flagMarked | flagScanned)
	}
}

func (r *NurseryRoom) release() {
	r.fragments = r.carve(r.sortedPins())
	r.next = 0
	r.handedOut = 0
}

// carve splits the standard fragment grid around pins, which must be
// sorted. Pieces smaller than the minimum fragment size are dropped for
// this cycle; the grid is recomputed from scratch on every release, so the
// space comes back once the pin is gone.
func (r *NurseryRoom) carve(pins []Pin) []Fragment {
	frags := make([]Fragment, 0, len(r.fragments))
	keep := func(start, end uintptr) {
		if end > start && end-start >= r.minFragSize {
			if len(frags) == r.maxFragments {
				assert.Fatalf("nursery fragment table exhausted (%d entries)", r.maxFragments)
			}
			frags = append(frags, Fragment{start: start, end: end})
		}
	}
	pi := 0
	for start := r.arena.Start(); start+r.fragSize <= r.arena.Limit(); start += r.fragSize {
		end := start + r.fragSize
		for pi < len(pins) && pins[pi].Addr+pins[pi].Len <= start {
			pi++
		}
		cur := start
		for ; pi < len(pins) && pins[pi].Addr < end; pi++ {
			p := pins[pi]
			keep(cur, p.Addr)
			cur = max(cur, p.Addr+p.Len)
		}
		keep(cur, end)
	}
	return frags
}

func (r *NurseryRoom) sortedPins() []Pin {
	pins := make([]Pin, 0, len(r.minorPins)+len(r.majorPins))
	pins = append(pins, r.minorPins...)
	pins = append(pins, r.majorPins...)
	slices.SortFunc(pins, func(a, b Pin) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	return slices.CompactFunc(pins, func(a, b Pin) bool { return a.Addr == b.Addr })
}

// Pins returns the current minor and major pins sorted by address.
func (r *NurseryRoom) Pins() []Pin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedPins()
}

// MajorPins returns the pins that survive until the next major collection.
func (r *NurseryRoom) MajorPins() []Pin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.majorPins)
}

// Available returns the fragments that have not been handed out yet.
func (r *NurseryRoom) Available() []Fragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.fragments[r.next:])
}

// FreeBytes returns the bytes in fragments not yet handed out.
func (r *NurseryRoom) FreeBytes() uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n uintptr
	for _, f := range r.fragments[r.next:] {
		n += f.Size()
	}
	return n
}
