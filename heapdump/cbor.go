// ABOUTME: Compact binary dump format
// ABOUTME: A magic prefix followed by a canonical CBOR sequence of records

package heapdump

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/prateek/nurserygc/graph"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("heapdump: CBOR encoding mode: %v", err))
	}
	cborEncMode = em
	Register(CBOR{}, WriteCBOR)
}

// CBOR is the binary dump format. Large dumps can be read record by record
// with StreamReader.
type CBOR struct{}

func (CBOR) Name() string { return "cbor" }

func (CBOR) CanParse(r io.Reader) bool {
	magic := make([]byte, len(cborMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return false
	}
	return bytes.Equal(magic, cborMagic)
}

func (CBOR) Parse(r io.Reader) (graph.Graph, Header, error) {
	g := graph.NewMemGraph()
	var hdr Header
	s := NewStreamReader(r, StreamCallbacks{
		OnHeader: func(h Header) error {
			hdr = h
			return nil
		},
		OnObject: func(obj *graph.Object) error {
			g.AddObject(obj)
			return nil
		},
		OnRoots: func(ids []graph.ObjID) error {
			roots := g.GetRoots()
			roots.IDs = append(roots.IDs, ids...)
			g.SetRoots(roots)
			return nil
		},
	})
	if err := s.Read(); err != nil {
		return nil, Header{}, fmt.Errorf("decoding CBOR dump: %w", err)
	}
	if g.GetRoots().IDs == nil {
		g.SetRoots(graph.Roots{IDs: []graph.ObjID{}})
	}
	hdr.Objects = g.NumObjects()
	return g, hdr, nil
}

// WriteCBOR encodes g as a CBOR dump.
func WriteCBOR(w io.Writer, g graph.Graph, hdr Header) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(cborMagic); err != nil {
		return err
	}
	enc := cborEncMode.NewEncoder(bw)
	if err := enc.Encode(record{Tag: tagHeader, Header: &hdr}); err != nil {
		return err
	}
	var err error
	g.ForEachObject(func(obj *graph.Object) {
		if err != nil {
			return
		}
		err = enc.Encode(record{Tag: tagObject, Object: &objectRecord{
			ID:     obj.ID,
			Kind:   obj.Kind,
			Space:  obj.Space,
			Size:   obj.Size,
			Pinned: obj.Pinned,
			Ptrs:   obj.Ptrs,
		}})
	})
	if err != nil {
		return err
	}
	if err := enc.Encode(record{Tag: tagRoots, Roots: g.GetRoots().IDs}); err != nil {
		return err
	}
	if err := enc.Encode(record{Tag: tagEnd}); err != nil {
		return err
	}
	return bw.Flush()
}
