package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domtrail/dbopen"
	"github.com/hazyhaar/domtrail/domtrail/result"
	"github.com/hazyhaar/domtrail/idgen"
)

// HistorySchema holds every result a History sink has written. payload is
// the JSON of the result itself.
const HistorySchema = `
CREATE TABLE IF NOT EXISTS history (
	event_id  TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	job       TEXT NOT NULL,
	page_url  TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL,
	payload   TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS history_job_time ON history(job, timestamp DESC);
CREATE INDEX IF NOT EXISTS history_kind ON history(kind);
`

// HistoryEntry is one row of the history table.
type HistoryEntry struct {
	EventID   string
	Kind      string // delivery, located or failure
	Job       string
	PageURL   string
	Status    string // ok or error
	Payload   string
	Timestamp time.Time
}

// HistoryFilter narrows Query. Zero fields match everything.
type HistoryFilter struct {
	Job   string
	Kind  string
	Since time.Time
	Limit int // default 100
}

// History records results in SQLite. Writes are queued and flushed in
// batches by a background goroutine; a full queue falls back to a
// synchronous insert.
type History struct {
	db     *sql.DB
	owned  bool
	newID  idgen.Generator
	logger *slog.Logger
	every  time.Duration
	keep   time.Duration

	ch   chan *HistoryEntry
	stop chan struct{}
	done chan struct{}
}

// HistoryOption configures a History sink.
type HistoryOption func(*History)

// WithHistoryIDGenerator sets the generator for event ids.
func WithHistoryIDGenerator(gen idgen.Generator) HistoryOption {
	return func(h *History) { h.newID = gen }
}

// WithHistoryLogger sets the logger for flush errors.
func WithHistoryLogger(l *slog.Logger) HistoryOption {
	return func(h *History) { h.logger = l }
}

// WithFlushInterval sets how often queued entries are written.
func WithFlushInterval(d time.Duration) HistoryOption {
	return func(h *History) { h.every = d }
}

// WithRetention deletes entries older than d when the sink opens.
// 0 keeps everything.
func WithRetention(d time.Duration) HistoryOption {
	return func(h *History) { h.keep = d }
}

// OpenHistory opens the database at path, applies HistorySchema and returns
// a sink that owns the database.
func OpenHistory(path string, opts ...HistoryOption) (*History, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(HistorySchema))
	if err != nil {
		return nil, fmt.Errorf("sink: history: %w", err)
	}
	h := NewHistory(db, 256, opts...)
	h.owned = true
	return h, nil
}

// NewHistory wraps db, whose schema must already be applied. Close does
// not close db.
func NewHistory(db *sql.DB, bufferSize int, opts ...HistoryOption) *History {
	h := &History{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
		every:  time.Second,
		ch:     make(chan *HistoryEntry, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.keep > 0 {
		h.expire()
	}
	go h.flushLoop()
	return h
}

func (h *History) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := h.Cleanup(ctx, time.Now().Add(-h.keep))
	if err != nil {
		h.logger.Error("sink: history cleanup failed", "error", err)
		return
	}
	if n > 0 {
		h.logger.Info("sink: history expired", "entries", n, "retention", h.keep)
	}
}

func (h *History) Send(_ context.Context, d result.Delivery) error {
	return h.enqueue("delivery", d.Job, d.PageURL, "ok", d.Timestamp, d)
}

func (h *History) SendLocated(_ context.Context, l result.Located) error {
	return h.enqueue("located", l.Job, l.PageURL, "ok", l.Timestamp, l)
}

func (h *History) SendFailure(_ context.Context, f result.Failure) error {
	return h.enqueue("failure", f.Job, f.PageURL, "error", f.Timestamp, f)
}

func (h *History) enqueue(kind, job, pageURL, status string, ms int64, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sink: history: marshal %s: %w", kind, err)
	}
	e := &HistoryEntry{
		EventID:   h.newID(),
		Kind:      kind,
		Job:       job,
		PageURL:   pageURL,
		Status:    status,
		Payload:   string(payload),
		Timestamp: time.UnixMilli(ms),
	}
	if ms == 0 {
		e.Timestamp = time.Now()
	}

	select {
	case h.ch <- e:
		return nil
	default:
		h.logger.Warn("sink: history buffer full, sync fallback", "job", job)
		return h.insert(context.Background(), []*HistoryEntry{e})
	}
}

// Query returns entries newest first.
func (h *History) Query(ctx context.Context, f HistoryFilter) ([]HistoryEntry, error) {
	q := `SELECT event_id, kind, job, page_url, status, payload, timestamp
		FROM history WHERE 1=1`
	var args []any
	if f.Job != "" {
		q += " AND job = ?"
		args = append(args, f.Job)
	}
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.UnixMilli())
	}
	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " ORDER BY timestamp DESC, event_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sink: history: query: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ms int64
		if err := rows.Scan(&e.EventID, &e.Kind, &e.Job, &e.PageURL, &e.Status, &e.Payload, &ms); err != nil {
			return nil, fmt.Errorf("sink: history: scan: %w", err)
		}
		e.Timestamp = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than before.
func (h *History) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := dbopen.Exec(ctx, h.db, "DELETE FROM history WHERE timestamp < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sink: history: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes everything queued and stops the background writer.
func (h *History) Close() error {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	<-h.done
	if h.owned {
		return h.db.Close()
	}
	return nil
}

func (h *History) insert(ctx context.Context, batch []*HistoryEntry) error {
	return dbopen.RunTx(ctx, h.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO history
			(event_id, kind, job, page_url, status, payload, timestamp)
			VALUES (?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx,
				e.EventID, e.Kind, e.Job, e.PageURL, e.Status, e.Payload, e.Timestamp.UnixMilli(),
			); err != nil {
				return fmt.Errorf("insert %s: %w", e.EventID, err)
			}
		}
		return nil
	})
}

func (h *History) flushLoop() {
	defer close(h.done)
	ticker := time.NewTicker(h.every)
	defer ticker.Stop()
	batch := make([]*HistoryEntry, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.insert(ctx, batch); err != nil {
			h.logger.Error("sink: history flush failed", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-h.stop:
			for {
				select {
				case e := <-h.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-h.ch:
			batch = append(batch, e)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
