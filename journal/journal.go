// Package journal keeps a local SQLite record of scan sessions so that an
// operator can see what ran, how far it got and which cloud resources it used.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is the journaled state of one session.
type Entry struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	Instance   string
	SSHKey     string
	Hosts      int
	Error      string
}

// Repository persists Entry records in SQLite.
type Repository struct {
	db *sql.DB
}

// schema is applied in order every time a journal is opened.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL,
	instance TEXT NOT NULL DEFAULT '',
	ssh_key TEXT NOT NULL DEFAULT '',
	hosts INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions (started_at)`,
}

// New opens the journal at path, creating the file and its directory on first use.
// The database runs in WAL mode with a five second busy timeout.
func New(path string) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, statement := range schema {
		if _, err := db.Exec(statement); err != nil {
			db.Close()
			return nil, fmt.Errorf("preparing journal %s: %w", path, err)
		}
	}

	return &Repository{db: db}, nil
}

// Record inserts the entry or replaces the stored one with the same id.
func (r *Repository) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("session id must not be empty")
	}

	query := `
INSERT INTO sessions (id, started_at, finished_at, state, instance, ssh_key, hosts, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id)
DO UPDATE SET
	finished_at = excluded.finished_at,
	state = excluded.state,
	instance = excluded.instance,
	ssh_key = excluded.ssh_key,
	hosts = excluded.hosts,
	error = excluded.error;
`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		toUnix(entry.StartedAt),
		toUnix(entry.FinishedAt),
		entry.State,
		entry.Instance,
		entry.SSHKey,
		entry.Hosts,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("recording session %s: %w", entry.ID, err)
	}
	return nil
}

// Fetch returns the entry with id, or nil if there is none.
func (r *Repository) Fetch(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, state, instance, ssh_key, hosts, error
FROM sessions
WHERE id = ?;
`, id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session %s: %w", id, err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, state, instance, ssh_key, hosts, error
FROM sessions
ORDER BY started_at DESC, id
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("reading session row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Close releases the underlying database resources.
func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry    Entry
		started  int64
		finished int64
	)
	if err := row.Scan(&entry.ID, &started, &finished, &entry.State, &entry.Instance, &entry.SSHKey, &entry.Hosts, &entry.Error); err != nil {
		return nil, err
	}
	entry.StartedAt = fromUnix(started)
	entry.FinishedAt = fromUnix(finished)
	return &entry, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}

func fromUnix(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
