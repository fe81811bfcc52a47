// ABOUTME: Reachability and per-space summaries of a snapshot
// ABOUTME: Finds garbage the next collection would reclaim

package graph

import (
	"cmp"
	"slices"
)

// Reachable returns the set of objects reachable from the roots.
func Reachable(g Graph) map[ObjID]bool {
	seen := make(map[ObjID]bool)
	work := slices.Clone(g.GetRoots().IDs)
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if obj := g.GetObject(id); obj != nil {
			for _, p := range obj.Ptrs {
				if !seen[p] {
					work = append(work, p)
				}
			}
		}
	}
	return seen
}

// Unreachable returns the objects no root can reach, sorted by ID.
func Unreachable(g Graph) []ObjID {
	live := Reachable(g)
	var dead []ObjID
	g.ForEachObject(func(obj *Object) {
		if !live[obj.ID] {
			dead = append(dead, obj.ID)
		}
	})
	slices.Sort(dead)
	return dead
}

// Usage totals objects and bytes.
type Usage struct {
	Objects int
	Bytes   uint64
}

func (u *Usage) add(size uint64) {
	u.Objects++
	u.Bytes += size
}

// Summary breaks a snapshot down by space and kind.
type Summary struct {
	Total       Usage
	Reachable   Usage
	Unreachable Usage
	Pinned      Usage
	BySpace     map[string]Usage
	ByKind      map[string]Usage
}

// Summarize totals the objects of g.
func Summarize(g Graph) Summary {
	live := Reachable(g)
	s := Summary{BySpace: make(map[string]Usage), ByKind: make(map[string]Usage)}
	g.ForEachObject(func(obj *Object) {
		s.Total.add(obj.Size)
		if live[obj.ID] {
			s.Reachable.add(obj.Size)
		} else {
			s.Unreachable.add(obj.Size)
		}
		if obj.Pinned {
			s.Pinned.add(obj.Size)
		}
		sp := s.BySpace[obj.Space]
		sp.add(obj.Size)
		s.BySpace[obj.Space] = sp
		k := s.ByKind[obj.Kind]
		k.add(obj.Size)
		s.ByKind[obj.Kind] = k
	})
	return s
}

// SortedKeys returns the keys of a usage breakdown ordered by bytes,
// largest first.
func SortedKeys(m map[string]Usage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(m[b].Bytes, m[a].Bytes); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}
