// ABOUTME: Parser and writer contracts for snapshot dump formats
// ABOUTME: Dumps carry a header identifying the snapshot plus the object graph

package heapdump

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/prateek/nurserygc/graph"
)

// FormatVersion is written into every dump header.
const FormatVersion = 1

// Header identifies a snapshot.
type Header struct {
	Version int       `json:"version" cbor:"1,keyasint"`
	ID      string    `json:"id" cbor:"2,keyasint"`
	Created time.Time `json:"created" cbor:"3,keyasint"`
	// Source names the process or tool that took the snapshot.
	Source  string `json:"source,omitempty" cbor:"4,keyasint,omitempty"`
	Objects int    `json:"objects" cbor:"5,keyasint"`
}

// NewHeader returns a header with a fresh snapshot ID.
func NewHeader(source string) Header {
	return Header{
		Version: FormatVersion,
		ID:      uuid.NewString(),
		Created: time.Now().UTC().Truncate(time.Second),
		Source:  source,
	}
}

// Parser reads one dump format.
type Parser interface {
	// Name is the format name writers are registered under.
	Name() string
	// CanParse inspects a prefix of the dump without consuming the stream.
	CanParse(r io.Reader) bool
	// Parse reads a whole dump from the start.
	Parse(r io.Reader) (graph.Graph, Header, error)
}

// WriteFunc encodes g with the given header.
type WriteFunc func(w io.Writer, g graph.Graph, hdr Header) error
