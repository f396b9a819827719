//go:build sqlite

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS download_events (
	id          TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	request_id  TEXT,
	ip_address  TEXT,
	user_agent  TEXT,
	status_code INTEGER NOT NULL,
	bytes       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_download_events_timestamp ON download_events(timestamp);
`

// sqliteTimeLayout is fixed width so timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteLedger is a SQLite-backed Ledger.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens dsn and creates the events table if needed.
func NewSQLiteLedger(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create download_events: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the database.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// Record inserts event.
func (s *SQLiteLedger) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_events (id, timestamp, request_id, ip_address, user_agent, status_code, bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(sqliteTimeLayout),
		nullString(event.RequestID),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		event.StatusCode,
		event.Bytes,
	)
	return err
}

// List returns events newest first.
func (s *SQLiteLedger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	where := "1=1"
	var args []any
	if opts.Since != nil {
		where += " AND timestamp >= ?"
		args = append(args, opts.Since.UTC().Format(sqliteTimeLayout))
	}
	if opts.Until != nil {
		where += " AND timestamp <= ?"
		args = append(args, opts.Until.UTC().Format(sqliteTimeLayout))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM download_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, timestamp, request_id, ip_address, user_agent, status_code, bytes
		FROM download_events WHERE ` + where + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(opts.Limit), max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		var (
			e                        Event
			ts                       string
			requestID, ip, userAgent sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &requestID, &ip, &userAgent, &e.StatusCode, &e.Bytes); err != nil {
			return nil, 0, err
		}
		e.Timestamp, err = time.Parse(sqliteTimeLayout, ts)
		if err != nil {
			return nil, 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		e.RequestID = requestID.String
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		events = append(events, &e)
	}
	return events, total, rows.Err()
}

// Stats aggregates all rows.
func (s *SQLiteLedger) Stats(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN bytes ELSE 0 END), 0),
			MAX(CASE WHEN status_code BETWEEN 200 AND 299 THEN timestamp END)
		FROM download_events`).Scan(&st.Total, &st.Succeeded, &st.BytesServed, &last)
	if err != nil {
		return Stats{}, err
	}
	st.Failed = st.Total - st.Succeeded
	if last.Valid {
		ts, err := time.Parse(sqliteTimeLayout, last.String)
		if err != nil {
			return Stats{}, fmt.Errorf("parse timestamp %q: %w", last.String, err)
		}
		st.LastDownload = &ts
	}
	return st, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
