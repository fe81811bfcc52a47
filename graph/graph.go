// ABOUTME: Graph interface and in-memory implementation
// ABOUTME: Stores snapshot objects and iterates them in insertion order

package graph

import "sync"

// Graph is a heap snapshot.
type Graph interface {
	// AddObject adds or replaces an object.
	AddObject(obj *Object)
	// GetObject returns the object with the given ID, or nil.
	GetObject(id ObjID) *Object
	NumObjects() int
	// ForEachObject calls fn for every object in insertion order.
	ForEachObject(fn func(*Object))
	SetRoots(roots Roots)
	GetRoots() Roots
}

// MemGraph is an in-memory Graph.
type MemGraph struct {
	mu      sync.RWMutex
	objects map[ObjID]*Object
	order   []ObjID
	roots   Roots
}

// NewMemGraph returns an empty graph.
func NewMemGraph() *MemGraph {
	return &MemGraph{objects: make(map[ObjID]*Object)}
}

func (g *MemGraph) AddObject(obj *Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[obj.ID]; !ok {
		g.order = append(g.order, obj.ID)
	}
	g.objects[obj.ID] = obj
}

func (g *MemGraph) GetObject(id ObjID) *Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.objects[id]
}

func (g *MemGraph) NumObjects() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

func (g *MemGraph) ForEachObject(fn func(*Object)) {
	g.mu.RLock()
	objs := make([]*Object, len(g.order))
	for i, id := range g.order {
		objs[i] = g.objects[id]
	}
	g.mu.RUnlock()
	for _, obj := range objs {
		fn(obj)
	}
}

func (g *MemGraph) SetRoots(roots Roots) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roots = roots
}

func (g *MemGraph) GetRoots() Roots {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.roots
}
