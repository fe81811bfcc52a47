// ABOUTME: Registry of dump formats
// ABOUTME: Detects the format of an incoming dump and finds writers by name

package heapdump

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/prateek/nurserygc/graph"
)

var (
	// ErrNoParser is returned when no registered format recognises a dump.
	ErrNoParser = errors.New("no parser found for dump format")
	// ErrUnknownFormat is returned when writing an unregistered format.
	ErrUnknownFormat = errors.New("unknown dump format")
	// ErrMissingID is returned for an object record without an ID.
	ErrMissingID = errors.New("object has no ID")
)

type formatRegistry struct {
	mu      sync.RWMutex
	parsers []Parser
	writers map[string]WriteFunc
}

var registry = &formatRegistry{writers: make(map[string]WriteFunc)}

// Register adds a format. Formats registered first are tried first.
func Register(p Parser, write WriteFunc) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.parsers = append(registry.parsers, p)
	if write != nil {
		registry.writers[p.Name()] = write
	}
}

// Formats lists the names of the formats that can be written.
func Formats() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.writers))
	for name := range registry.writers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open detects the dump's format and parses it.
func Open(r io.Reader) (graph.Graph, Header, error) {
	prefix := make([]byte, 4096)
	n, err := io.ReadFull(r, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, Header{}, err
	}
	prefix = prefix[:n]

	registry.mu.RLock()
	parsers := slices.Clone(registry.parsers)
	registry.mu.RUnlock()

	for _, p := range parsers {
		if p.CanParse(bytes.NewReader(prefix)) {
			return p.Parse(io.MultiReader(bytes.NewReader(prefix), r))
		}
	}
	return nil, Header{}, ErrNoParser
}

// OpenFile opens and parses the dump at path.
func OpenFile(path string) (graph.Graph, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer f.Close()
	g, hdr, err := Open(f)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return g, hdr, nil
}

// Write encodes g in the named format. hdr.Objects is filled in.
func Write(w io.Writer, format string, g graph.Graph, hdr Header) error {
	registry.mu.RLock()
	write, ok := registry.writers[format]
	registry.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	hdr.Objects = g.NumObjects()
	return write(w, g, hdr)
}

// WriteFile encodes g in the named format into a new file at path.
func WriteFile(path, format string, g graph.Graph, hdr Header) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, format, g, hdr)
}
