// ABOUTME: Tests for reference chains back to roots
// ABOUTME: Shortest-first order, cycles, several roots and the path limit

package graph

import (
	"reflect"
	"testing"
)

func TestPathsToRoots(t *testing.T) {
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: {2}, 2: {3, 4}, 3: nil, 4: nil})

	tests := []struct {
		name string
		from ObjID
		want []Path
	}{
		{"root itself", 1, []Path{{IDs: []ObjID{1}}}},
		{"one hop", 2, []Path{{IDs: []ObjID{2, 1}}}},
		{"two hops", 3, []Path{{IDs: []ObjID{3, 2, 1}}}},
		{"sibling", 4, []Path{{IDs: []ObjID{4, 2, 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathsToRoots(g, tt.from, 5); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PathsToRoots(%d) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestPathsToRootsCycle(t *testing.T) {
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: {2}, 2: {3, 2}, 3: {2}})
	want := []Path{{IDs: []ObjID{3, 2, 1}}}
	if got := PathsToRoots(g, 3, 5); !reflect.DeepEqual(got, want) {
		t.Errorf("PathsToRoots() = %v, want %v", got, want)
	}
}

func TestPathsToRootsUnreachable(t *testing.T) {
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: {2}, 2: nil, 3: nil})
	if got := PathsToRoots(g, 3, 5); len(got) != 0 {
		t.Errorf("garbage object has paths %v", got)
	}
}

func TestPathsToRootsShortestFirst(t *testing.T) {
	g := build([]ObjID{1, 2}, map[ObjID][]ObjID{1: {3}, 2: {4}, 3: {5}, 4: nil, 5: {4}})
	want := []Path{{IDs: []ObjID{4, 2}}, {IDs: []ObjID{4, 5, 3, 1}}}
	if got := PathsToRoots(g, 4, 5); !reflect.DeepEqual(got, want) {
		t.Errorf("PathsToRoots() = %v, want %v", got, want)
	}
}

func TestPathsToRootsLimit(t *testing.T) {
	g := build([]ObjID{1, 2, 3}, map[ObjID][]ObjID{1: {4}, 2: {4}, 3: {4}, 4: nil})
	if got := PathsToRoots(g, 4, 2); len(got) != 2 {
		t.Errorf("got %d paths, want 2", len(got))
	}
	if got := PathsToRoots(g, 4, 0); got != nil {
		t.Errorf("zero limit returned %v", got)
	}
}
