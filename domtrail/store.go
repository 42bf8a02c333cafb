package domtrail

import (
	"github.com/hazyhaar/domtrail/domtrail/internal/store"
)

// AnchorStore keeps located anchors between runs.
type AnchorStore = store.Store

// Anchor is a stored fork for a named job.
type Anchor = store.Anchor

// NewMemoryStore returns a store that lives as long as the process.
func NewMemoryStore() AnchorStore {
	return store.NewMemory()
}

// OpenSQLiteStore opens an SQLite anchor store at dsn (":memory:" when empty).
func OpenSQLiteStore(dsn string) (AnchorStore, error) {
	return store.OpenSQLite(dsn)
}
