// ABOUTME: Queries over dominator trees
// ABOUTME: Depths, dominator chains and dominance tests

package graph

// DominatorDepth returns each node's depth below the super-root.
func DominatorDepth(tree map[ObjID][]ObjID) map[ObjID]int {
	depth := map[ObjID]int{SuperRoot: 0}
	queue := []ObjID{SuperRoot}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range tree[node] {
			depth[child] = depth[node] + 1
			queue = append(queue, child)
		}
	}
	return depth
}

// DominatorPath returns the chain of dominators from node up to and
// including the super-root.
func DominatorPath(idom map[ObjID]ObjID, node ObjID) []ObjID {
	path := []ObjID{node}
	for cur := node; cur != SuperRoot; {
		dom, ok := idom[cur]
		if !ok {
			dom = SuperRoot
		}
		path = append(path, dom)
		cur = dom
	}
	return path
}

// IsDominated reports whether every path from the roots to node passes
// through dominator. A node dominates itself.
func IsDominated(idom map[ObjID]ObjID, node, dominator ObjID) bool {
	for cur := node; ; {
		if cur == dominator {
			return true
		}
		dom, ok := idom[cur]
		if !ok {
			return false
		}
		cur = dom
	}
}
