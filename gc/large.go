// ABOUTME: Large-object space: page-granular objects on an intrusive list
// ABOUTME: Swept by major collections; freed spans are reused but never compacted

package gc

import (
	"slices"
	"sync"

	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
)

// largeObj is the record at the start of every large-object span. The
// allocation header follows it.
type largeObj struct {
	next, prev uintptr
	spanSize   uintptr
	_          uintptr
}

const largeRecordSize = 32

func largeAt(addr uintptr) *largeObj {
	return (*largeObj)(arena.Ptr(addr))
}

type span struct {
	start, size uintptr
}

type largeSpace struct {
	mu    sync.Mutex
	arena *arena.Arena
	head  uintptr
	// starts holds every live record address, sorted, for interior lookup.
	starts []uintptr
	free   []span

	liveBytes uintptr
}

func newLargeSpace(a *arena.Arena) *largeSpace {
	return &largeSpace{arena: a}
}

// alloc returns the header address of a new large object of n bytes.
func (s *largeSpace) alloc(n uintptr, kind Kind) uintptr {
	if n > MaxAllocSize {
		assert.Fatalf("large allocation of %d bytes is too big (limit %d)", n, uint64(MaxAllocSize))
	}
	total := arena.AlignUp(largeRecordSize+headerSize+n, arena.PageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	start, ok := s.takeSpan(total)
	if ok {
		arena.Zero(start, total)
	} else {
		start = s.arena.Reserve(total)
	}
	rec := largeAt(start)
	*rec = largeObj{next: s.head, spanSize: total}
	if s.head != 0 {
		largeAt(s.head).prev = start
	}
	s.head = start

	idx, _ := slices.BinarySearch(s.starts, start)
	s.starts = slices.Insert(s.starts, idx, start)
	s.liveBytes += total

	hdr := start + largeRecordSize
	hdrAt(hdr).init(n, kind)
	return hdr
}

// takeSpan carves size bytes out of the first free span large enough.
func (s *largeSpace) takeSpan(size uintptr) (uintptr, bool) {
	for i, sp := range s.free {
		if sp.size < size {
			continue
		}
		if sp.size == size {
			s.free = slices.Delete(s.free, i, i+1)
		} else {
			s.free[i] = span{start: sp.start + size, size: sp.size - size}
		}
		return sp.start, true
	}
	return 0, false
}

func (s *largeSpace) lookup(addr uintptr) (uintptr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, found := slices.BinarySearch(s.starts, addr)
	if !found {
		if idx == 0 {
			return 0, false
		}
		idx--
	}
	hdr := s.starts[idx] + largeRecordSize
	hd := hdrAt(hdr)
	if !hd.live() || addr < hdr+headerSize || addr >= hdr+headerSize+uintptr(hd.size) {
		return 0, false
	}
	return hdr, true
}

func (s *largeSpace) unlink(start uintptr) {
	rec := largeAt(start)
	if rec.prev != 0 {
		largeAt(rec.prev).next = rec.next
	} else {
		s.head = rec.next
	}
	if rec.next != 0 {
		largeAt(rec.next).prev = rec.prev
	}
}

func (s *largeSpace) forEach(fn func(hdr uintptr)) {
	s.mu.Lock()
	var hdrs []uintptr
	for cur := s.head; cur != 0; cur = largeAt(cur).next {
		hdrs = append(hdrs, cur+largeRecordSize)
	}
	s.mu.Unlock()
	for _, hdr := range hdrs {
		fn(hdr)
	}
}

// sweep unlinks every unmarked object and clears the mark on survivors.
func (s *largeSpace) sweep() (objects int, bytes uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cur := s.head; cur != 0; {
		rec := largeAt(cur)
		next := rec.next
		hd := hdrAt(cur + largeRecordSize)
		if hd.has(flagMarked) {
			hd.unset(flagMarked)
			cur = next
			continue
		}
		s.unlink(cur)
		*hd = header{}
		idx, _ := slices.BinarySearch(s.starts, cur)
		s.starts = slices.Delete(s.starts, idx, idx+1)
		s.free = append(s.free, span{start: cur, size: rec.spanSize})
		objects++
		bytes += rec.spanSize
		cur = next
	}
	s.liveBytes -= bytes
	return objects, bytes
}

func (s *largeSpace) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts)
}
