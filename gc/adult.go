// ABOUTME: Adult generation: size-class segregated blocks in the adult arena
// ABOUTME: Evacuated nursery survivors land here and are swept by major collections

package gc

import (
	"github.com/prateek/nurserygc/arena"
	"github.com/prateek/nurserygc/internal/assert"
)

// adultBlock is a run of equally sized slots carved from the adult arena.
type adultBlock struct {
	start    uintptr
	class    int
	slotSize uintptr
	nslots   uintptr
}

type adultSpace struct {
	arena     *arena.Arena
	blockSize uintptr
	blocks    []adultBlock

	// free holds, per class, the header address of the first free slot.
	// Free slots link through header.fwd.
	free [numClasses]uintptr

	liveBytes   uintptr
	liveObjects int
}

func newAdultSpace(a *arena.Arena, blockSize uintptr) *adultSpace {
	return &adultSpace{arena: a, blockSize: blockSize}
}

// alloc returns the header address of a zeroed slot able to hold n bytes.
// Only collections allocate here, with the world stopped.
func (s *adultSpace) alloc(n uintptr, kind Kind) uintptr {
	class, ok := classFor(n)
	assert.That(ok, "adult allocation of %d bytes exceeds the largest class", n)
	if s.free[class] == 0 {
		s.grow(class)
	}
	addr := s.free[class]
	hd := hdrAt(addr)
	s.free[class] = hd.fwd
	arena.Zero(addr+headerSize, sizes[class])
	hd.init(n, kind)
	s.liveBytes += sizes[class]
	s.liveObjects++
	return addr
}

func (s *adultSpace) grow(class int) {
	start := s.arena.Reserve(s.blockSize)
	slot := headerSize + sizes[class]
	b := adultBlock{
		start:    start,
		class:    class,
		slotSize: slot,
		nslots:   s.blockSize / slot,
	}
	assert.That(uintptr(len(s.blocks)) == (start-s.arena.Start())/s.blockSize, "adult blocks out of order")
	s.blocks = append(s.blocks, b)
	for i := b.nslots; i > 0; i-- {
		s.pushFree(class, start+(i-1)*slot)
	}
	log.Debugf("adult: new block for %d-byte class at %#x", sizes[class], start)
}

func (s *adultSpace) pushFree(class int, addr uintptr) {
	hd := hdrAt(addr)
	*hd = header{state: stateFree, fwd: s.free[class]}
	s.free[class] = addr
}

// lookup returns the header of the live slot containing addr.
func (s *adultSpace) lookup(addr uintptr) (uintptr, bool) {
	idx := (addr - s.arena.Start()) / s.blockSize
	if idx >= uintptr(len(s.blocks)) {
		return 0, false
	}
	b := &s.blocks[idx]
	slot := (addr - b.start) / b.slotSize
	if slot >= b.nslots {
		return 0, false
	}
	hdr := b.start + slot*b.slotSize
	hd := hdrAt(hdr)
	if !hd.live() || addr < hdr+headerSize || addr >= hdr+headerSize+uintptr(hd.size) {
		return 0, false
	}
	return hdr, true
}

func (s *adultSpace) forEach(fn func(hdr uintptr)) {
	for i := range s.blocks {
		b := &s.blocks[i]
		for j := uintptr(0); j < b.nslots; j++ {
			hdr := b.start + j*b.slotSize
			if hdrAt(hdr).live() {
				fn(hdr)
			}
		}
	}
}

// sweep frees every unmarked slot and clears the mark on survivors.
func (s *adultSpace) sweep() (objects int, bytes uintptr) {
	for i := range s.blocks {
		b := &s.blocks[i]
		// Walk backwards so freed slots are reused lowest address first.
		for j := b.nslots; j > 0; j-- {
			hdr := b.start + (j-1)*b.slotSize
			hd := hdrAt(hdr)
			if !hd.live() {
				continue
			}
			if hd.has(flagMarked) {
				hd.unset(flagMarked)
				continue
			}
			s.pushFree(b.class, hdr)
			objects++
			bytes += sizes[b.class]
		}
	}
	s.liveBytes -= bytes
	s.liveObjects -= objects
	return objects, bytes
}
