// ABOUTME: Minor collection: evacuate nursery survivors into the adult generation
// ABOUTME: Objects reached through ambiguous words are pinned instead of moved

package gc

import (
	"time"

	"github.com/inhies/go-bytesize"
)

// MinorCollect evacuates every live nursery object that is reachable
// through exact references only, pins the ones an ambiguous word points
// into, and hands the nursery back for allocation. Unreached nursery
// objects are reclaimed without any per-object work. t must hold the
// execution token.
func (h *Heap) MinorCollect(t *Thread) {
	h.requireWorldStopped(t)
	start := time.Now()

	old := h.takeRemembered()

	// Pass 1: find the nursery live set and pin everything an ambiguous
	// word refers to, so that pass 2 never moves an object whose address
	// might be held somewhere it cannot rewrite.
	mark := h.newTraversal(phaseMinorMark)
	h.scanRoots(mark, t)
	for _, hdr := range old {
		mark.scanObject(hdr)
	}
	mark.drain()

	// Pass 2: forward or redirect every exact reference into the nursery.
	ev := h.newTraversal(phaseEvacuate)
	h.scanRoots(ev, t)
	for _, hdr := range old {
		ev.scanObject(hdr)
	}
	ev.drain()
	h.setRemembered(ev.remembered)

	h.dropFragments()
	h.rebuildStarts()
	pins := len(h.nursery.Pins())
	h.nursery.ReleaseMinor()

	pause := since(start)
	h.statsMu.Lock()
	h.stats.MinorCollections++
	h.stats.ObjectsPromoted += uint64(ev.promoted)
	h.stats.BytesPromoted += uint64(ev.promotedBytes)
	h.stats.LastMinorPinned = pins
	h.stats.LastMinorPause = pause
	n := h.stats.MinorCollections
	h.statsMu.Unlock()

	log.Infof("minor collection #%d: %d live, %d promoted (%s), %d pinned, %d remembered, %s",
		n, mark.enqueued, ev.promoted, bytesize.New(float64(ev.promotedBytes)), pins, len(ev.remembered), pause)
}
