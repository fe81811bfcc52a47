// ABOUTME: Tests for the in-memory snapshot graph
// ABOUTME: Insertion order, replacement and root bookkeeping

package graph

import (
	"reflect"
	"testing"
)

func TestMemGraphInsertionOrder(t *testing.T) {
	g := NewMemGraph()
	for _, id := range []ObjID{0x3010, 0x1010, 0x2010} {
		g.AddObject(&Object{ID: id, Kind: "refs", Space: "nursery", Size: 16})
	}

	var got []ObjID
	g.ForEachObject(func(obj *Object) { got = append(got, obj.ID) })
	want := []ObjID{0x3010, 0x1010, 0x2010}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ForEachObject order = %v, want %v", got, want)
	}
	if g.NumObjects() != 3 {
		t.Errorf("NumObjects() = %d, want 3", g.NumObjects())
	}
}

func TestMemGraphReplace(t *testing.T) {
	g := NewMemGraph()
	g.AddObject(&Object{ID: 1, Kind: "refs", Space: "nursery", Size: 16})
	g.AddObject(&Object{ID: 2, Kind: "data", Space: "adult", Size: 32})
	g.AddObject(&Object{ID: 1, Kind: "refs", Space: "adult", Size: 16})

	if g.NumObjects() != 2 {
		t.Fatalf("NumObjects() = %d, want 2", g.NumObjects())
	}
	if got := g.GetObject(1).Space; got != "adult" {
		t.Errorf("replaced object space = %q, want adult", got)
	}

	var got []ObjID
	g.ForEachObject(func(obj *Object) { got = append(got, obj.ID) })
	if !reflect.DeepEqual(got, []ObjID{1, 2}) {
		t.Errorf("replacement changed order: %v", got)
	}
}

func TestMemGraphMissingObject(t *testing.T) {
	g := NewMemGraph()
	if obj := g.GetObject(0xdead0); obj != nil {
		t.Errorf("GetObject on empty graph = %+v, want nil", obj)
	}
	if len(g.GetRoots().IDs) != 0 {
		t.Errorf("empty graph has roots %v", g.GetRoots().IDs)
	}
}

func TestMemGraphRoots(t *testing.T) {
	g := NewMemGraph()
	g.AddObject(&Object{ID: 1, Kind: "conservative", Ptrs: []ObjID{2}})
	g.AddObject(&Object{ID: 2, Kind: "data"})
	g.SetRoots(Roots{IDs: []ObjID{1}})

	if got := g.GetRoots().IDs; !reflect.DeepEqual(got, []ObjID{1}) {
		t.Errorf("GetRoots() = %v, want [1]", got)
	}
}

func TestBuildReverseEdges(t *testing.T) {
	g := NewMemGraph()
	g.AddObject(&Object{ID: 3, Ptrs: []ObjID{1, 1}})
	g.AddObject(&Object{ID: 2, Ptrs: []ObjID{1}})
	g.AddObject(&Object{ID: 1, Ptrs: []ObjID{1}})

	rev := BuildReverseEdges(g)
	if got := rev[1]; !reflect.DeepEqual(got, []ObjID{1, 2, 3}) {
		t.Errorf("referrers of 1 = %v, want [1 2 3]", got)
	}
	if _, ok := rev[2]; ok {
		t.Errorf("object 2 has no referrers but got %v", rev[2])
	}
}
