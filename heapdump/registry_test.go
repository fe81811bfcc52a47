// ABOUTME: Tests for format registration, detection and writing by name
// ABOUTME: Uses a scratch registry so the built-in formats are left alone

package heapdump

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prateek/nurserygc/graph"
)

// prefixFormat accepts dumps starting with its name.
type prefixFormat struct {
	name string
}

func (p prefixFormat) Name() string { return p.name }

func (p prefixFormat) CanParse(r io.Reader) bool {
	buf := make([]byte, len(p.name))
	_, err := io.ReadFull(r, buf)
	return err == nil && string(buf) == p.name
}

func (p prefixFormat) Parse(r io.Reader) (graph.Graph, Header, error) {
	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, Header{}, err
	}
	return graph.NewMemGraph(), Header{Source: string(rest)}, nil
}

func scratchRegistry(t *testing.T) {
	saved := registry
	registry = &formatRegistry{writers: make(map[string]WriteFunc)}
	t.Cleanup(func() { registry = saved })
}

func TestOpenDetectsFormat(t *testing.T) {
	scratchRegistry(t)
	Register(prefixFormat{name: "alpha"}, nil)
	Register(prefixFormat{name: "beta"}, nil)

	tests := []struct {
		name    string
		content string
		source  string
		wantErr error
	}{
		{"first format", "alpha-dump", "alpha-dump", nil},
		{"second format", "beta-dump", "beta-dump", nil},
		{"unknown", "gamma-dump", "", ErrNoParser},
		{"empty", "", "", ErrNoParser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, hdr, err := Open(strings.NewReader(tt.content))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
			if hdr.Source != tt.source {
				t.Errorf("parser saw %q, want the whole dump %q", hdr.Source, tt.source)
			}
		})
	}
}

func TestOpenLongDump(t *testing.T) {
	scratchRegistry(t)
	Register(prefixFormat{name: "alpha"}, nil)

	content := "alpha" + strings.Repeat("x", 10_000)
	_, hdr, err := Open(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Source != content {
		t.Errorf("parser saw %d bytes, want %d", len(hdr.Source), len(content))
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(io.Discard, "xml", graph.NewMemGraph(), NewHeader("test"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Write(xml) error = %v, want ErrUnknownFormat", err)
	}
}

func TestBuiltinFormats(t *testing.T) {
	if got := Formats(); !reflect.DeepEqual(got, []string{"cbor", "json"}) {
		t.Errorf("Formats() = %v", got)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	g := sampleGraph()
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap."+format)
			hdr := NewHeader("round-trip")
			if err := WriteFile(path, format, g, hdr); err != nil {
				t.Fatal(err)
			}
			got, gotHdr, err := OpenFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if gotHdr.ID != hdr.ID || gotHdr.Source != "round-trip" || gotHdr.Objects != 4 {
				t.Errorf("header = %+v, want ID %s", gotHdr, hdr.ID)
			}
			if !gotHdr.Created.Equal(hdr.Created) {
				t.Errorf("created = %v, want %v", gotHdr.Created, hdr.Created)
			}
			assertSameGraph(t, g, got)
		})
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, _, err := OpenFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func sampleGraph() *graph.MemGraph {
	g := graph.NewMemGraph()
	g.AddObject(&graph.Object{ID: 0x1010, Kind: "refs", Space: "nursery", Size: 32, Pinned: true, Ptrs: []graph.ObjID{0x2010}})
	g.AddObject(&graph.Object{ID: 0x2010, Kind: "conservative", Space: "adult", Size: 64, Ptrs: []graph.ObjID{0x1010, 0x3030}})
	g.AddObject(&graph.Object{ID: 0x3030, Kind: "data", Space: "large", Size: 8192, Ptrs: []graph.ObjID{}})
	g.AddObject(&graph.Object{ID: 0x4010, Kind: "data", Space: "nursery", Size: 16, Ptrs: []graph.ObjID{}})
	g.SetRoots(graph.Roots{IDs: []graph.ObjID{0x1010}})
	return g
}

func assertSameGraph(t *testing.T, want, got graph.Graph) {
	t.Helper()
	if got.NumObjects() != want.NumObjects() {
		t.Fatalf("got %d objects, want %d", got.NumObjects(), want.NumObjects())
	}
	want.ForEachObject(func(w *graph.Object) {
		g := got.GetObject(w.ID)
		if g == nil {
			t.Errorf("object %#x missing", w.ID)
			return
		}
		if !reflect.DeepEqual(g, w) {
			t.Errorf("object %#x = %+v, want %+v", w.ID, g, w)
		}
	})
	if !reflect.DeepEqual(got.GetRoots(), want.GetRoots()) {
		t.Errorf("roots = %v, want %v", got.GetRoots(), want.GetRoots())
	}
}

func TestOpenPrefersMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCBOR(&buf, sampleGraph(), NewHeader("magic")); err != nil {
		t.Fatal(err)
	}
	_, hdr, err := Open(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Source != "magic" {
		t.Errorf("source = %q", hdr.Source)
	}
}
