// ABOUTME: Retained sizes from the dominator tree
// ABOUTME: An object retains itself and everything it dominates

package graph

import (
	"cmp"
	"slices"
)

// RetainedSize returns, for every reachable object, the bytes that would
// become unreachable if it disappeared.
func RetainedSize(g Graph) map[ObjID]uint64 {
	ix := newIndex(g)
	retained := ix.retained()
	out := make(map[ObjID]uint64, len(retained))
	for n, size := range retained {
		out[ix.ids[n]] = size
	}
	return out
}

// RetainedSizeSubsets returns retained sizes for the given objects only.
// Unknown and unreachable IDs are left out.
func RetainedSizeSubsets(g Graph, ids []ObjID) map[ObjID]uint64 {
	out := make(map[ObjID]uint64)
	if len(ids) == 0 {
		return out
	}
	ix := newIndex(g)
	retained := ix.retained()
	for _, id := range ids {
		if n, ok := ix.pos[id]; ok && n != 0 {
			if size, ok := retained[n]; ok {
				out[id] = size
			}
		}
	}
	return out
}

// retained accumulates sizes bottom-up. A node always appears after its
// immediate dominator in reverse post-order, so walking the post-order
// forwards visits children before parents.
func (ix *index) retained() map[int]uint64 {
	idom, post := ix.dominators()
	acc := make([]uint64, len(ix.ids))
	for _, n := range post {
		acc[n] += ix.sizes[n]
		if n != 0 {
			acc[idom[n]] += acc[n]
		}
	}
	out := make(map[int]uint64, len(post))
	for _, n := range post {
		if n != 0 {
			out[n] = acc[n]
		}
	}
	return out
}

// Retainer is an object with its retained size.
type Retainer struct {
	ID       ObjID
	Retained uint64
}

// TopRetainers returns the n objects with the largest retained sizes,
// largest first, ties broken by ID.
func TopRetainers(retained map[ObjID]uint64, n int) []Retainer {
	all := make([]Retainer, 0, len(retained))
	for id, size := range retained {
		all = append(all, Retainer{ID: id, Retained: size})
	}
	slices.SortFunc(all, func(a, b Retainer) int {
		if c := cmp.Compare(b.Retained, a.Retained); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}
