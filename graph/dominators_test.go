// ABOUTME: Tests for immediate dominators and dominator-tree queries
// ABOUTME: Covers chains, diamonds, cycles, several roots and large graphs

package graph

import (
	"fmt"
	"reflect"
	"slices"
	"testing"
)

func build(roots []ObjID, edges map[ObjID][]ObjID) *MemGraph {
	g := NewMemGraph()
	ids := make([]ObjID, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		g.AddObject(&Object{ID: id, Kind: "refs", Space: "adult", Size: 16, Ptrs: edges[id]})
	}
	g.SetRoots(Roots{IDs: roots})
	return g
}

func TestDominators(t *testing.T) {
	tests := []struct {
		name  string
		roots []ObjID
		edges map[ObjID][]ObjID
		want  map[ObjID]ObjID
	}{
		{
			name:  "chain",
			roots: []ObjID{2},
			edges: map[ObjID][]ObjID{1: nil, 2: {3}, 3: {4}, 4: nil},
			want:  map[ObjID]ObjID{2: SuperRoot, 3: 2, 4: 3},
		},
		{
			name:  "diamond",
			roots: []ObjID{1},
			edges: map[ObjID][]ObjID{1: {2, 3}, 2: {4}, 3: {4}, 4: nil},
			want:  map[ObjID]ObjID{1: SuperRoot, 2: 1, 3: 1, 4: 1},
		},
		{
			name:  "cross edges",
			roots: []ObjID{1},
			edges: map[ObjID][]ObjID{1: {2, 3}, 2: {4}, 3: {4, 5}, 4: {6}, 5: {6}, 6: nil},
			want:  map[ObjID]ObjID{1: SuperRoot, 2: 1, 3: 1, 4: 1, 5: 3, 6: 1},
		},
		{
			name:  "back edge",
			roots: []ObjID{1},
			edges: map[ObjID][]ObjID{1: {2}, 2: {3}, 3: {4}, 4: {2, 5}, 5: nil},
			want:  map[ObjID]ObjID{1: SuperRoot, 2: 1, 3: 2, 4: 3, 5: 4},
		},
		{
			name:  "shared by two roots",
			roots: []ObjID{1, 2},
			edges: map[ObjID][]ObjID{1: {3}, 2: {3}, 3: nil},
			want:  map[ObjID]ObjID{1: SuperRoot, 2: SuperRoot, 3: SuperRoot},
		},
		{
			name:  "garbage left out",
			roots: []ObjID{1},
			edges: map[ObjID][]ObjID{1: {2}, 2: nil, 3: {2}},
			want:  map[ObjID]ObjID{1: SuperRoot, 2: 1},
		},
		{
			name:  "self reference",
			roots: []ObjID{1},
			edges: map[ObjID][]ObjID{1: {1, 2}, 2: {2}},
			want:  map[ObjID]ObjID{1: SuperRoot, 2: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dominators(build(tt.roots, tt.edges))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dominators() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDominatorTreeQueries(t *testing.T) {
	g := build([]ObjID{1}, map[ObjID][]ObjID{1: {2, 3}, 2: {4}, 3: {4, 5}, 4: nil, 5: nil})
	idom := Dominators(g)
	tree := DominatorTree(idom)

	for node, want := range map[ObjID][]ObjID{SuperRoot: {1}, 1: {2, 3, 4}, 2: {}, 3: {5}} {
		got := slices.Clone(tree[node])
		slices.Sort(got)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("children of %d = %v, want %v", node, got, want)
		}
	}

	depth := DominatorDepth(tree)
	if depth[5] != 3 || depth[4] != 2 || depth[1] != 1 {
		t.Errorf("unexpected depths %v", depth)
	}
	if got := DominatorPath(idom, 5); !reflect.DeepEqual(got, []ObjID{5, 3, 1, SuperRoot}) {
		t.Errorf("DominatorPath(5) = %v", got)
	}
	if !IsDominated(idom, 5, 3) || IsDominated(idom, 4, 3) || !IsDominated(idom, 4, 4) {
		t.Error("IsDominated gave the wrong answer")
	}
}

func TestDominatorsLargeGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("large graph")
	}
	const n = 100_000
	edges := make(map[ObjID][]ObjID, n)
	for i := 1; i <= n; i++ {
		var ptrs []ObjID
		if i > 1 {
			ptrs = append(ptrs, ObjID((i-2)/10+1))
		}
		for c := 10*(i-1) + 2; c <= 10*(i-1)+11 && c <= n; c++ {
			ptrs = append(ptrs, ObjID(c))
		}
		edges[ObjID(i)] = ptrs
	}
	// A long list, which would exhaust a recursive traversal.
	for i := n + 1; i <= 2*n; i++ {
		edges[ObjID(i)] = []ObjID{ObjID(i + 1)}
	}
	edges[2*n+1] = nil
	edges[1] = append(edges[1], n+1)

	dom := Dominators(build([]ObjID{1}, edges))
	if len(dom) != 2*n+1 {
		t.Fatalf("got %d dominators, want %d", len(dom), 2*n+1)
	}
	if dom[2*n+1] != 2*n {
		t.Errorf("tail dominated by %d", dom[2*n+1])
	}
}

func BenchmarkDominators(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			edges := make(map[ObjID][]ObjID, n)
			for i := 1; i <= n; i++ {
				var ptrs []ObjID
				if i > 1 {
					ptrs = append(ptrs, ObjID((i-1)/2+1))
				}
				if i*2 <= n {
					ptrs = append(ptrs, ObjID(i*2))
				}
				if i*2+1 <= n {
					ptrs = append(ptrs, ObjID(i*2+1))
				}
				edges[ObjID(i)] = ptrs
			}
			g := build([]ObjID{1}, edges)
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Dominators(g)
			}
		})
	}
}
