// ABOUTME: Core data types for heap snapshots
// ABOUTME: Objects keyed by payload address, with their space, kind and outgoing references

package graph

// ObjID identifies an object in a snapshot. Snapshots taken from a live
// heap use the payload address; 0 is reserved for the synthetic super-root.
type ObjID uint64

// SuperRoot is the synthetic node that points at every root.
const SuperRoot ObjID = 0

// Object is one allocation in a snapshot.
type Object struct {
	ID     ObjID
	Kind   string // layout name, e.g. "refs" or "conservative"
	Space  string // heap space holding the object, e.g. "nursery"
	Size   uint64 // payload bytes
	Pinned bool
	Ptrs   []ObjID // objects this one refers to
}

// Roots is the set of objects referenced directly by roots.
type Roots struct {
	IDs []ObjID
}
