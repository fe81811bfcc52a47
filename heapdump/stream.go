// ABOUTME: Streaming reader for the CBOR dump format
// ABOUTME: Decodes one record at a time and reports each through callbacks

package heapdump

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/prateek/nurserygc/graph"
)

// cborMagic prefixes every CBOR dump.
var cborMagic = []byte("NGCDUMP\x01")

type recordTag uint8

const (
	tagHeader recordTag = iota + 1
	tagObject
	tagRoots
	tagEnd
)

// record is one item of the CBOR sequence following the magic.
type record struct {
	Tag    recordTag     `cbor:"1,keyasint"`
	Header *Header       `cbor:"2,keyasint,omitempty"`
	Object *objectRecord `cbor:"3,keyasint,omitempty"`
	Roots  []graph.ObjID `cbor:"4,keyasint,omitempty"`
}

type objectRecord struct {
	ID     graph.ObjID   `cbor:"1,keyasint"`
	Kind   string        `cbor:"2,keyasint,omitempty"`
	Space  string        `cbor:"3,keyasint,omitempty"`
	Size   uint64        `cbor:"4,keyasint"`
	Pinned bool          `cbor:"5,keyasint,omitempty"`
	Ptrs   []graph.ObjID `cbor:"6,keyasint,omitempty"`
}

// StreamCallbacks receive the records of a dump as they are decoded. A
// callback returning an error stops the stream with that error.
type StreamCallbacks struct {
	OnHeader func(hdr Header) error
	OnObject func(obj *graph.Object) error
	OnRoots  func(ids []graph.ObjID) error
	// OnProgress is called every ProgressEvery records and once at the end.
	OnProgress func(records int64, elapsed time.Duration)
}

// ProgressEvery is how many records pass between progress callbacks.
const ProgressEvery = 10_000

// StreamReader decodes a CBOR dump without materialising the graph.
type StreamReader struct {
	r         *bufio.Reader
	callbacks StreamCallbacks
	records   int64
	start     time.Time
}

// NewStreamReader returns a reader over a CBOR dump.
func NewStreamReader(r io.Reader, callbacks StreamCallbacks) *StreamReader {
	return &StreamReader{r: bufio.NewReaderSize(r, 1<<20), callbacks: callbacks}
}

// Records returns the number of records decoded so far.
func (s *StreamReader) Records() int64 { return s.records }

// Read decodes the whole dump. The header must come first and the stream
// must end with an end record.
func (s *StreamReader) Read() error {
	s.start = time.Now()
	magic := make([]byte, len(cborMagic))
	if _, err := io.ReadFull(s.r, magic); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if !bytes.Equal(magic, cborMagic) {
		return fmt.Errorf("invalid magic %q", magic)
	}

	dec := cbor.NewDecoder(s.r)
	sawHeader := false
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("dump truncated after %d records: %w", s.records, io.ErrUnexpectedEOF)
			}
			return fmt.Errorf("record %d: %w", s.records, err)
		}
		s.records++
		if s.records%ProgressEvery == 0 {
			s.progress()
		}

		if !sawHeader && rec.Tag != tagHeader {
			return fmt.Errorf("record %d: expected header, got tag %d", s.records, rec.Tag)
		}
		switch rec.Tag {
		case tagHeader:
			if sawHeader || rec.Header == nil {
				return fmt.Errorf("record %d: unexpected header", s.records)
			}
			sawHeader = true
			if rec.Header.Version != FormatVersion {
				return fmt.Errorf("unsupported dump version %d", rec.Header.Version)
			}
			if s.callbacks.OnHeader != nil {
				if err := s.callbacks.OnHeader(*rec.Header); err != nil {
					return err
				}
			}
		case tagObject:
			o := rec.Object
			if o == nil || o.ID == graph.SuperRoot {
				return fmt.Errorf("record %d: %w", s.records, ErrMissingID)
			}
			if s.callbacks.OnObject != nil {
				ptrs := o.Ptrs
				if ptrs == nil {
					ptrs = []graph.ObjID{}
				}
				obj := &graph.Object{ID: o.ID, Kind: o.Kind, Space: o.Space, Size: o.Size, Pinned: o.Pinned, Ptrs: ptrs}
				if err := s.callbacks.OnObject(obj); err != nil {
					return err
				}
			}
		case tagRoots:
			if s.callbacks.OnRoots != nil {
				if err := s.callbacks.OnRoots(rec.Roots); err != nil {
					return err
				}
			}
		case tagEnd:
			s.progress()
			return nil
		default:
			return fmt.Errorf("record %d: unknown tag %d", s.records, rec.Tag)
		}
	}
}

func (s *StreamReader) progress() {
	if s.callbacks.OnProgress != nil {
		s.callbacks.OnProgress(s.records, time.Since(s.start))
	}
}
