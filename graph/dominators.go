// ABOUTME: Immediate dominators of the snapshot graph
// ABOUTME: Iterative data-flow algorithm over reverse post-order and predecessor lists

package graph

// Dominators returns the immediate dominator of every object reachable
// from the roots. Roots, and objects reachable from more than one root
// only through the super-root, map to SuperRoot. Unreachable objects are
// absent.
func Dominators(g Graph) map[ObjID]ObjID {
	ix := newIndex(g)
	idom, order := ix.dominators()
	result := make(map[ObjID]ObjID, len(order))
	for _, n := range order {
		if n != 0 {
			result[ix.ids[n]] = ix.ids[idom[n]]
		}
	}
	return result
}

// dominators computes immediate dominators by node number, following
// Cooper, Harvey and Kennedy, and returns them with the reachable nodes in
// post-order. Unreachable nodes keep -1.
func (ix *index) dominators() (idom []int, post []int) {
	post = ix.postorder()
	rank := make([]int, len(ix.ids))
	for i := range rank {
		rank[i] = -1
	}
	for i, n := range post {
		rank[n] = i
	}
	idom = make([]int, len(ix.ids))
	for i := range idom {
		idom[i] = -1
	}
	idom[0] = 0

	intersect := func(a, b int) int {
		for a != b {
			for rank[a] < rank[b] {
				a = idom[a]
			}
			for rank[b] < rank[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for i := len(post) - 1; i >= 0; i-- {
			n := post[i]
			if n == 0 {
				continue
			}
			next := -1
			for _, p := range ix.pred[n] {
				if idom[p] == -1 {
					continue
				}
				if next == -1 {
					next = p
				} else {
					next = intersect(p, next)
				}
			}
			if next != idom[n] {
				idom[n] = next
				changed = true
			}
		}
	}
	return idom, post
}

// DominatorTree inverts an immediate-dominator map into child lists. The
// super-root is always present.
func DominatorTree(idom map[ObjID]ObjID) map[ObjID][]ObjID {
	tree := map[ObjID][]ObjID{SuperRoot: {}}
	for node := range idom {
		if _, ok := tree[node]; !ok {
			tree[node] = []ObjID{}
		}
	}
	for node, dom := range idom {
		tree[dom] = append(tree[dom], node)
	}
	return tree
}
