// ABOUTME: Breadth-first search for reference chains from an object back to roots
// ABOUTME: Returns up to K shortest simple paths

package graph

// Path is a chain of references from a target object back to a root:
// IDs[0] is the target and each following ID refers to the one before it.
type Path struct {
	IDs []ObjID
}

// pathNode is a link in a search path; paths share prefixes instead of
// copying them.
type pathNode struct {
	id    ObjID
	prev  *pathNode
	depth int
}

func (p *pathNode) contains(id ObjID) bool {
	for ; p != nil; p = p.prev {
		if p.id == id {
			return true
		}
	}
	return false
}

func (p *pathNode) ids() []ObjID {
	out := make([]ObjID, p.depth+1)
	for i := p.depth; p != nil; p, i = p.prev, i-1 {
		out[i] = p.id
	}
	return out
}

// PathsToRoots returns at most maxPaths paths from the object from to a
// root, shortest first. Paths never visit an object twice.
func PathsToRoots(g Graph, from ObjID, maxPaths int) []Path {
	if maxPaths <= 0 {
		return nil
	}
	reverse := BuildReverseEdges(g)
	rootSet := make(map[ObjID]bool)
	for _, id := range g.GetRoots().IDs {
		rootSet[id] = true
	}
	if rootSet[from] {
		return []Path{{IDs: []ObjID{from}}}
	}

	var result []Path
	queue := []*pathNode{{id: from}}
	for len(queue) > 0 && len(result) < maxPaths {
		node := queue[0]
		queue = queue[1:]
		for _, referrer := range reverse[node.id] {
			if node.contains(referrer) {
				continue
			}
			next := &pathNode{id: referrer, prev: node, depth: node.depth + 1}
			if !rootSet[referrer] {
				queue = append(queue, next)
				continue
			}
			result = append(result, Path{IDs: next.ids()})
			if len(result) >= maxPaths {
				break
			}
		}
	}
	return result
}
