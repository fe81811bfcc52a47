// ABOUTME: Reverse edges and the dense node index shared by the analyses
// ABOUTME: Maps objects to their referrers and IDs to slice positions

package graph

import "slices"

// ReverseEdges maps each object to the objects that refer to it, sorted.
type ReverseEdges map[ObjID][]ObjID

// BuildReverseEdges inverts every reference in g.
func BuildReverseEdges(g Graph) ReverseEdges {
	reverse := make(ReverseEdges)
	g.ForEachObject(func(obj *Object) {
		for _, target := range obj.Ptrs {
			reverse[target] = append(reverse[target], obj.ID)
		}
	})
	for id, refs := range reverse {
		slices.Sort(refs)
		reverse[id] = slices.Compact(refs)
	}
	return reverse
}

// index numbers the nodes of a graph densely. Node 0 is the super-root,
// whose successors are the roots. References to IDs without an object
// still get a node so they can be reported.
type index struct {
	ids   []ObjID
	pos   map[ObjID]int
	succ  [][]int
	pred  [][]int
	sizes []uint64
}

func newIndex(g Graph) *index {
	ix := &index{pos: make(map[ObjID]int)}
	ix.node(SuperRoot)
	g.ForEachObject(func(obj *Object) {
		n := ix.node(obj.ID)
		ix.sizes[n] = obj.Size
	})
	g.ForEachObject(func(obj *Object) {
		from := ix.pos[obj.ID]
		for _, target := range obj.Ptrs {
			ix.edge(from, ix.node(target))
		}
	})
	for _, root := range g.GetRoots().IDs {
		ix.edge(0, ix.node(root))
	}
	return ix
}

func (ix *index) node(id ObjID) int {
	if n, ok := ix.pos[id]; ok {
		return n
	}
	n := len(ix.ids)
	ix.ids = append(ix.ids, id)
	ix.pos[id] = n
	ix.succ = append(ix.succ, nil)
	ix.pred = append(ix.pred, nil)
	ix.sizes = append(ix.sizes, 0)
	return n
}

func (ix *index) edge(from, to int) {
	ix.succ[from] = append(ix.succ[from], to)
	ix.pred[to] = append(ix.pred[to], from)
}

// postorder returns the nodes reachable from the super-root in DFS
// post-order, iteratively.
func (ix *index) postorder() []int {
	seen := make([]bool, len(ix.ids))
	type frame struct{ node, next int }
	stack := []frame{{node: 0}}
	seen[0] = true
	var order []int
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(ix.succ[top.node]) {
			w := ix.succ[top.node][top.next]
			top.next++
			if !seen[w] {
				seen[w] = true
				stack = append(stack, frame{node: w})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}
