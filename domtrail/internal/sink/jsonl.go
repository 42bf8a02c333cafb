package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hazyhaar/domtrail/domtrail/result"
)

// JSONL writes one JSON envelope per line to an io.Writer.
type JSONL struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewStdout creates a JSON-lines sink on w. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *JSONL {
	if w == nil {
		w = os.Stdout
	}
	return &JSONL{enc: json.NewEncoder(w)}
}

// NewFile appends JSON lines to the file at path, creating it and its
// parent directories. Close closes the file.
func NewFile(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sink: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &JSONL{enc: json.NewEncoder(f), closer: f}, nil
}

func (s *JSONL) Send(_ context.Context, d result.Delivery) error {
	return s.write("delivery", d)
}

func (s *JSONL) SendLocated(_ context.Context, l result.Located) error {
	return s.write("located", l)
}

func (s *JSONL) SendFailure(_ context.Context, f result.Failure) error {
	return s.write("failure", f)
}

func (s *JSONL) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *JSONL) write(typ string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(Envelope{Type: typ, Data: data})
}

// Envelope is the line format: {"type": "delivery", "data": {...}}.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
