package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hazyhaar/domtrail/idgen"
)

// Memory is a Store that lives as long as the process.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]Anchor
	seq   map[string]int64
	next  int64
	newID idgen.Generator
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:  make(map[string]Anchor),
		seq:   make(map[string]int64),
		newID: idgen.Prefixed("anc_", idgen.Default),
		now:   time.Now,
	}
}

func (m *Memory) Put(_ context.Context, a Anchor) (Anchor, error) {
	if a.Name == "" {
		return Anchor{}, fmt.Errorf("store: anchor without name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a = stamp(a, m.newID, m.now)
	a.Upper, a.Lower = a.Upper.Clone(), a.Lower.Clone()
	m.next++
	m.byID[a.ID] = a
	m.seq[a.ID] = m.next
	return a, nil
}

func (m *Memory) List(_ context.Context, name string) ([]Anchor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Anchor
	for _, a := range m.byID {
		if a.Name == name {
			out = append(out, a)
		}
	}
	// Newest first; insertion order breaks timestamp ties.
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (Anchor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return Anchor{}, fmt.Errorf("%w: %s", ErrNoAnchor, id)
	}
	return a, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	delete(m.seq, id)
	return nil
}

func (m *Memory) Close() error { return nil }
