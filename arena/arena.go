// ABOUTME: Monotonically growing, page-aligned virtual address ranges
// ABOUTME: Reserves address space up front and commits pages on demand

// Package arena reserves large virtual address ranges from the OS and hands
// out committed, page-aligned memory from them in address order. An arena
// never shrinks and never returns memory to the OS: once committed, the
// address of every byte is stable for the lifetime of the process.
package arena

import (
	"sync"

	"github.com/inhies/go-bytesize"
	"github.com/tliron/commonlog"
	"golang.org/x/sys/unix"

	"github.com/prateek/nurserygc/internal/assert"
)

var log = commonlog.GetLogger("nurserygc.arena")

// PageSize is the OS page size; every Reserve is a multiple of it.
var PageSize = uintptr(unix.Getpagesize())

// Arena is a reserved virtual range. Memory in [Start, End) is committed and
// readable/writable; [End, Limit) is reserved but inaccessible.
type Arena struct {
	name  string
	mem   []byte
	start uintptr
	limit uintptr

	mu  sync.Mutex
	cur uintptr
}

// New reserves capacity bytes (rounded up to whole pages) of address space.
// Nothing is committed until Reserve is called. Failure to obtain the range
// is fatal.
func New(name string, capacity uintptr) *Arena {
	capacity = AlignUp(capacity, PageSize)
	if capacity == 0 {
		assert.Fatalf("arena %s: zero capacity", name)
	}
	mem, err := unix.Mmap(-1, 0, int(capacity), unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		assert.Fatalf("arena %s: failed to reserve %s from OS: %v", name, bytesize.New(float64(capacity)), err)
	}
	start := addrOf(mem)
	log.Debugf("arena %s: reserved %s at %#x", name, bytesize.New(float64(capacity)), start)
	return &Arena{
		name:  name,
		mem:   mem,
		start: start,
		limit: start + capacity,
		cur:   start,
	}
}

// Reserve commits size more bytes at the next free address and returns the
// start of the new range. size must be a multiple of PageSize. Running past
// the reservation, or the OS refusing the pages, is fatal.
func (a *Arena) Reserve(size uintptr) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserveLocked(size)
}

// GrowTo commits pages until End() >= end.
func (a *Arena) GrowTo(end uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if end <= a.cur {
		return
	}
	a.reserveLocked(AlignUp(end-a.cur, PageSize))
}

func (a *Arena) reserveLocked(size uintptr) uintptr {
	if size%PageSize != 0 {
		assert.Fatalf("arena %s: reserve of %d bytes is not page aligned", a.name, size)
	}
	if size > a.limit-a.cur {
		assert.Fatalf("arena %s: exhausted (%s committed, %s requested)", a.name,
			bytesize.New(float64(a.cur-a.start)), bytesize.New(float64(size)))
	}
	off := a.cur - a.start
	if err := unix.Mprotect(a.mem[off:off+size], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		assert.Fatalf("arena %s: failed to commit %s: %v", a.name, bytesize.New(float64(size)), err)
	}
	res := a.cur
	a.cur += size
	return res
}

// Contains reports whether addr lies in the committed part of the arena.
func (a *Arena) Contains(addr uintptr) bool {
	return a.start <= addr && addr < a.End()
}

// Covers reports whether addr lies anywhere in the reservation, committed or not.
func (a *Arena) Covers(addr uintptr) bool {
	return a.start <= addr && addr < a.limit
}

// Name returns the arena's diagnostic name.
func (a *Arena) Name() string { return a.name }

// Start returns the first address of the arena.
func (a *Arena) Start() uintptr { return a.start }

// End returns the end of the committed range.
func (a *Arena) End() uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur
}

// Limit returns the end of the reservation.
func (a *Arena) Limit() uintptr { return a.limit }

// Committed returns the number of committed bytes.
func (a *Arena) Committed() uintptr {
	return a.End() - a.start
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
