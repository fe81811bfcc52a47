// ABOUTME: Collector statistics
// ABOUTME: Counters updated by collections plus a point-in-time view of the spaces

package gc

import "time"

// Stats summarises the heap's activity.
type Stats struct {
	MinorCollections uint64
	MajorCollections uint64

	BytesAllocated  uint64
	ObjectsPromoted uint64
	BytesPromoted   uint64
	ObjectsFreed    uint64
	BytesFreed      uint64

	LastMinorPinned int
	LastMinorPause  time.Duration
	LastMajorPause  time.Duration

	NurseryCommitted uint64
	NurseryFree      uint64
	AdultCommitted   uint64
	AdultLiveBytes   uint64
	AdultLiveObjects int
	LargeCommitted   uint64
	LargeLiveBytes   uint64
	LargeObjects     int
	Remembered       int
}

// Stats returns the current statistics. Space figures are only stable
// while the caller holds the execution token.
func (h *Heap) Stats() Stats {
	h.statsMu.Lock()
	s := h.stats
	h.statsMu.Unlock()

	s.BytesAllocated = h.bytesAllocated()
	s.NurseryCommitted = uint64(h.nurseryArena.Committed())
	s.NurseryFree = uint64(h.nursery.FreeBytes())
	s.AdultCommitted = uint64(h.adultArena.Committed())
	s.AdultLiveBytes = uint64(h.adult.liveBytes)
	s.AdultLiveObjects = h.adult.liveObjects
	s.LargeCommitted = uint64(h.largeArena.Committed())
	h.large.mu.Lock()
	s.LargeLiveBytes = uint64(h.large.liveBytes)
	h.large.mu.Unlock()
	s.LargeObjects = h.large.count()
	s.Remembered = h.Remembered()
	return s
}
