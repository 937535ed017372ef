// Package history persists analysis outcomes to SQLite. Only outcomes are
// stored — scores, verdicts and timings — never file content.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/preflight/idgen"
)

// Schema for the analyses table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS analyses (
	analysis_id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	family TEXT NOT NULL,
	score INTEGER NOT NULL,
	verdict TEXT NOT NULL,
	messages TEXT NOT NULL,
	duration_us INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_analyses_verdict ON analyses(verdict);
`

// Entry is one recorded analysis outcome.
type Entry struct {
	AnalysisID string   `json:"analysis_id"`
	FileName   string   `json:"file_name"`
	Family     string   `json:"family"`
	Score      int      `json:"score"`
	Verdict    string   `json:"verdict"`
	Messages   []string `json:"messages"`
	DurationUs int64    `json:"duration_us"`
	CreatedAt  int64    `json:"created_at"`
}

// Store persists entries asynchronously: writes queue on a buffered
// channel and flush in batches so a slow disk never blocks an analysis.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan *Entry
	done  chan struct{}
	once  sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for analysis IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates a history store backed by the given database connection
// and starts its flush goroutine.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: idgen.Prefixed("ana_", idgen.Default),
		ch:    make(chan *Entry, 256),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.flushLoop()
	return s
}

// Init creates the analyses table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync assigns an ID and timestamp and queues the entry.
// Non-blocking: drops the entry if the buffer is full, because history is
// advisory and must never backpressure the analysis path.
func (s *Store) RecordAsync(e *Entry) string {
	e.AnalysisID = s.newID()
	e.CreatedAt = time.Now().Unix()
	select {
	case s.ch <- e:
	default:
		slog.Warn("history buffer full, entry dropped", "file", e.FileName)
	}
	return e.AnalysisID
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT analysis_id, file_name, family, score, verdict, messages, duration_us, created_at
		FROM analyses ORDER BY created_at DESC, analysis_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var msgs string
		if err := rows.Scan(&e.AnalysisID, &e.FileName, &e.Family, &e.Score, &e.Verdict,
			&msgs, &e.DurationUs, &e.CreatedAt); err != nil {
			return nil, err
		}
		if msgs != "" {
			e.Messages = strings.Split(msgs, "\n")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 32)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 32 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("history store: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO analyses
		(analysis_id, file_name, family, score, verdict, messages, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("history store: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		msgs := strings.Join(e.Messages, "\n")
		if _, err := stmt.Exec(e.AnalysisID, e.FileName, e.Family, e.Score, e.Verdict,
			msgs, e.DurationUs, e.CreatedAt); err != nil {
			slog.Error("history store: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("history store: commit", "error", err)
	}
}
