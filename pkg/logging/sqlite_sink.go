package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jingkaihe/httpintercept/internal/errx"
)

type migration struct {
	Version int
	Name    string
	SQL     string
}

func eventMigrations() []migration {
	return []migration{
		{
			Version: 1,
			Name:    "create_events",
			SQL: `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  run_id TEXT NOT NULL,
  source TEXT NOT NULL,
  event_type TEXT NOT NULL,
  summary TEXT NOT NULL,
  rule TEXT,
  tags TEXT,
  data TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`,
		},
	}
}

// SQLiteSink journals events into a SQLite database.
// It implements Sink and is safe for concurrent use.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path and applies any
// pending schema migrations.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.Wrap(ErrOpenDatabase, err)
	}
	// SQLite allows a single writer at a time.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errx.Wrap(ErrOpenDatabase, err)
		}
	}
	if err := migrate(db, eventMigrations()); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

func migrate(db *sql.DB, migrations []migration) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`); err != nil {
		return errx.Wrap(ErrMigrate, err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return errx.Wrap(ErrMigrate, err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return errx.Wrap(ErrMigrate, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return errx.With(ErrMigrate, " %d (%s): %v", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return errx.Wrap(ErrMigrate, err)
		}
		if err := tx.Commit(); err != nil {
			return errx.Wrap(ErrMigrate, err)
		}
	}
	return nil
}

// Write inserts the event as a single row.
func (s *SQLiteSink) Write(event *Event) error {
	var tags, data sql.NullString
	if len(event.Tags) > 0 {
		b, err := json.Marshal(event.Tags)
		if err != nil {
			return errx.Wrap(ErrWriteEvent, err)
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	if len(event.Data) > 0 {
		data = sql.NullString{String: string(event.Data), Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO events(ts, run_id, source, event_type, summary, rule, tags, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.RunID,
		event.Source,
		event.EventType,
		event.Summary,
		sql.NullString{String: event.Rule, Valid: event.Rule != ""},
		tags,
		data,
	)
	if err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

// Recent returns up to limit events in insertion order, newest last.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, run_id, source, event_type, summary, rule, tags, data
FROM (SELECT * FROM events ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ts               string
			ev               Event
			rule, tags, data sql.NullString
		)
		if err := rows.Scan(&ts, &ev.RunID, &ev.Source, &ev.EventType, &ev.Summary, &rule, &tags, &data); err != nil {
			return nil, errx.Wrap(ErrQueryEvents, err)
		}
		ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, errx.Wrap(ErrQueryEvents, err)
		}
		ev.Rule = rule.String
		if tags.Valid {
			if err := json.Unmarshal([]byte(tags.String), &ev.Tags); err != nil {
				return nil, errx.Wrap(ErrQueryEvents, err)
			}
		}
		if data.Valid {
			ev.Data = json.RawMessage(data.String)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrQueryEvents, err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	if err := s.db.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}
