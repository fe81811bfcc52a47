// ABOUTME: JSON dump format
// ABOUTME: A single document with the header, every object and the roots

package heapdump

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prateek/nurserygc/graph"
)

// JSON is the human-readable dump format.
type JSON struct{}

type jsonDump struct {
	Header  *Header       `json:"header,omitempty"`
	Objects []jsonObject  `json:"objects"`
	Roots   []graph.ObjID `json:"roots"`
}

type jsonObject struct {
	ID     graph.ObjID   `json:"id"`
	Kind   string        `json:"kind,omitempty"`
	Space  string        `json:"space,omitempty"`
	Size   uint64        `json:"size"`
	Pinned bool          `json:"pinned,omitempty"`
	Ptrs   []graph.ObjID `json:"ptrs"`
}

func (JSON) Name() string { return "json" }

// CanParse accepts a JSON object with an "objects" member.
func (JSON) CanParse(r io.Reader) bool {
	buf := make([]byte, 1024)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF || n == 0 {
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(buf[:n]))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return false
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return false
		}
		if key == "objects" {
			tok, err := dec.Token()
			return err == nil && tok == json.Delim('[')
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return false
		}
	}
	return false
}

func (JSON) Parse(r io.Reader) (graph.Graph, Header, error) {
	var dump jsonDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, Header{}, fmt.Errorf("decoding JSON dump: %w", err)
	}
	for i, obj := range dump.Objects {
		if obj.ID == graph.SuperRoot {
			return nil, Header{}, fmt.Errorf("object at index %d: %w", i, ErrMissingID)
		}
	}

	g := graph.NewMemGraph()
	for _, obj := range dump.Objects {
		ptrs := obj.Ptrs
		if ptrs == nil {
			ptrs = []graph.ObjID{}
		}
		g.AddObject(&graph.Object{
			ID:     obj.ID,
			Kind:   obj.Kind,
			Space:  obj.Space,
			Size:   obj.Size,
			Pinned: obj.Pinned,
			Ptrs:   ptrs,
		})
	}
	roots := dump.Roots
	if roots == nil {
		roots = []graph.ObjID{}
	}
	g.SetRoots(graph.Roots{IDs: roots})

	var hdr Header
	if dump.Header != nil {
		hdr = *dump.Header
	}
	hdr.Objects = g.NumObjects()
	return g, hdr, nil
}

// WriteJSON encodes g as an indented JSON document.
func WriteJSON(w io.Writer, g graph.Graph, hdr Header) error {
	dump := jsonDump{Header: &hdr, Objects: make([]jsonObject, 0, g.NumObjects()), Roots: g.GetRoots().IDs}
	g.ForEachObject(func(obj *graph.Object) {
		dump.Objects = append(dump.Objects, jsonObject{
			ID:     obj.ID,
			Kind:   obj.Kind,
			Space:  obj.Space,
			Size:   obj.Size,
			Pinned: obj.Pinned,
			Ptrs:   obj.Ptrs,
		})
	})
	if dump.Roots == nil {
		dump.Roots = []graph.ObjID{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}

func init() {
	Register(JSON{}, WriteJSON)
}
