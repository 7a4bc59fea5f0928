// Package journal keeps an SQLite audit trail of every action a run takes
// against the dashboard server.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentstation/redpush/pkg/constants"
	"github.com/agentstation/redpush/pkg/errors"
	"github.com/agentstation/redpush/pkg/logging"
	"github.com/agentstation/redpush/pkg/reconcile"
	"github.com/agentstation/redpush/pkg/resources"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	kind        TEXT NOT NULL,
	action      TEXT NOT NULL,
	tracking_id TEXT,
	remote_id   INTEGER,
	name        TEXT,
	dry_run     BOOLEAN NOT NULL DEFAULT 0,
	anomaly     TEXT,
	message     TEXT,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
`

// Entry is one journaled event.
type Entry struct {
	ID         int64                `json:"id" yaml:"id"`
	RunID      string               `json:"run_id" yaml:"run_id"`
	Time       time.Time            `json:"time" yaml:"time"`
	Kind       reconcile.Kind       `json:"kind" yaml:"kind"`
	Action     reconcile.Action     `json:"action" yaml:"action"`
	TrackingID resources.TrackingID `json:"tracking_id,omitempty" yaml:"tracking_id,omitempty"`
	RemoteID   int                  `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
	Name       string               `json:"name,omitempty" yaml:"name,omitempty"`
	DryRun     bool                 `json:"dry_run" yaml:"dry_run"`
	Anomaly    string               `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
	Message    string               `json:"message,omitempty" yaml:"message,omitempty"`
	Error      string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// Journal is an open journal database. It implements reconcile.Observer.
type Journal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("mkdir", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapIO("open journal", path, err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapIO("initialize journal", path, err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Observe implements reconcile.Observer. Write failures are logged and
// never reach the run.
func (j *Journal) Observe(ctx context.Context, ev reconcile.Event) {
	if err := j.Record(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("path", j.path).Msg("Failed to journal event")
	}
}

// Record stores one event.
func (j *Journal) Record(ctx context.Context, ev reconcile.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	var errText sql.NullString
	if ev.Err != nil {
		errText = sql.NullString{String: ev.Err.Error(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (run_id, recorded_at, kind, action, tracking_id, remote_id, name, dry_run, anomaly, message, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, at.UTC(), string(ev.Kind), string(ev.Action),
		nullString(ev.TrackingID.String()), nullInt(ev.RemoteID), nullString(ev.Name),
		ev.DryRun, nullString(string(ev.Anomaly)), nullString(ev.Message), errText,
	)
	if err != nil {
		return errors.WrapIO("write journal", j.path, err)
	}
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit
// uses the default history size.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	return j.query(ctx,
		`SELECT id, run_id, recorded_at, kind, action, tracking_id, remote_id, name, dry_run, anomaly, message, error
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
}

// Run returns the entries of one run in the order they were recorded.
func (j *Journal) Run(ctx context.Context, runID string) ([]Entry, error) {
	return j.query(ctx,
		`SELECT id, run_id, recorded_at, kind, action, tracking_id, remote_id, name, dry_run, anomaly, message, error
		 FROM events WHERE run_id = ? ORDER BY id`, runID)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.WrapIO("read journal", j.path, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                           Entry
			kind, action                                string
			trackingID, name, anomaly, message, errText sql.NullString
			remoteID                                    sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Time, &kind, &action, &trackingID, &remoteID,
			&name, &e.DryRun, &anomaly, &message, &errText); err != nil {
			return nil, errors.WrapIO("read journal", j.path, err)
		}
		e.Kind = reconcile.Kind(kind)
		e.Action = reconcile.Action(action)
		e.TrackingID = resources.TrackingID(trackingID.String)
		e.RemoteID = int(remoteID.Int64)
		e.Name = name.String
		e.Anomaly = anomaly.String
		e.Message = message.String
		e.Error = errText.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("read journal", j.path, err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
