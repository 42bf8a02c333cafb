package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domtrail/dbopen"
	"github.com/hazyhaar/domtrail/idgen"
)

// Schema for the anchors table. Paths are stored as JSON index arrays.
const Schema = `
CREATE TABLE IF NOT EXISTS anchors (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	upper_idx  TEXT NOT NULL DEFAULT '[]',
	lower_idx  TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS anchors_name ON anchors(name, created_at DESC, seq DESC);
`

// SQLite is a Store backed by an SQLite database.
type SQLite struct {
	db    *sql.DB
	owned bool
	newID idgen.Generator
	now   func() time.Time
}

// OpenSQLite opens (or creates) the database at dsn. ":memory:" keeps the
// anchors for the life of the process only.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = dbopen.Memory
	}
	db, err := dbopen.Open(dsn, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s := NewSQLite(db)
	s.owned = true
	return s, nil
}

// NewSQLite wraps an open database whose schema is already applied. Close
// does not close db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{
		db:    db,
		newID: idgen.Prefixed("anc_", idgen.Default),
		now:   time.Now,
	}
}

func (s *SQLite) Put(ctx context.Context, a Anchor) (Anchor, error) {
	if a.Name == "" {
		return Anchor{}, fmt.Errorf("store: anchor without name")
	}
	a = stamp(a, s.newID, s.now)
	upper, err := json.Marshal(a.Upper)
	if err != nil {
		return Anchor{}, fmt.Errorf("store: encode upper: %w", err)
	}
	lower, err := json.Marshal(a.Lower)
	if err != nil {
		return Anchor{}, fmt.Errorf("store: encode lower: %w", err)
	}
	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anchors (id, name, upper_idx, lower_idx, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				upper_idx = excluded.upper_idx,
				lower_idx = excluded.lower_idx`,
			a.ID, a.Name, string(upper), string(lower), a.CreatedAt)
		return err
	})
	if err != nil {
		return Anchor{}, fmt.Errorf("store: put %s: %w", a.ID, err)
	}
	return a, nil
}

func (s *SQLite) List(ctx context.Context, name string) ([]Anchor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, upper_idx, lower_idx, created_at
		FROM anchors
		WHERE name = ?
		ORDER BY created_at DESC, seq DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", name, err)
	}
	defer rows.Close()

	var out []Anchor
	for rows.Next() {
		a, err := scanAnchor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (Anchor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, upper_idx, lower_idx, created_at
		FROM anchors WHERE id = ?`, id)
	a, err := scanAnchor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Anchor{}, fmt.Errorf("%w: %s", ErrNoAnchor, id)
	}
	return a, err
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM anchors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnchor(sc scanner) (Anchor, error) {
	var a Anchor
	var upper, lower string
	if err := sc.Scan(&a.ID, &a.Name, &upper, &lower, &a.CreatedAt); err != nil {
		return Anchor{}, err
	}
	if err := json.Unmarshal([]byte(upper), &a.Upper); err != nil {
		return Anchor{}, fmt.Errorf("store: anchor %s: upper_idx: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(lower), &a.Lower); err != nil {
		return Anchor{}, fmt.Errorf("store: anchor %s: lower_idx: %w", a.ID, err)
	}
	return a, nil
}
