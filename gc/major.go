// ABOUTME: Major collection: mark the whole heap in place, then sweep
// ABOUTME: Adult and large objects never move; live nursery objects stay put until the next minor

package gc

import (
	"time"

	"github.com/inhies/go-bytesize"
)

// MajorCollect marks everything reachable from the roots and reclaims
// unmarked adult slots, large objects and nursery space. Nothing is
// relocated. t must hold the execution token.
func (h *Heap) MajorCollect(t *Thread) {
	h.majorMu.Lock()
	defer h.majorMu.Unlock()
	h.majorCollect(t)
}

func (h *Heap) majorCollect(t *Thread) {
	h.requireWorldStopped(t)
	start := time.Now()

	h.takeRemembered()

	mark := h.newTraversal(phaseMajorMark)
	h.scanRoots(mark, t)
	mark.drain()
	h.setRemembered(mark.remembered)

	adultObjs, adultBytes := h.adult.sweep()
	largeObjs, largeBytes := h.large.sweep()

	// Live nursery objects cannot move during a major collection; keep
	// them out of the fragments handed out next.
	for _, hdr := range mark.nurseryLive {
		h.nursery.PinMinor(hdr, hdrAt(hdr).footprint())
	}
	h.dropFragments()
	h.rebuildStarts()
	h.nursery.ReleaseMajor()
	h.sinceMajor.Store(0)

	pause := since(start)
	h.statsMu.Lock()
	h.stats.MajorCollections++
	h.stats.ObjectsFreed += uint64(adultObjs + largeObjs)
	h.stats.BytesFreed += uint64(adultBytes + largeBytes)
	h.stats.LastMajorPause = pause
	n := h.stats.MajorCollections
	h.statsMu.Unlock()

	log.Infof("major collection #%d: %d live (%d in nursery), freed %d adult (%s) and %d large (%s), %s",
		n, mark.enqueued, len(mark.nurseryLive), adultObjs, bytesize.New(float64(adultBytes)),
		largeObjs, bytesize.New(float64(largeBytes)), pause)
}
