//go:build postgres

package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS download_events (
	id          UUID PRIMARY KEY,
	timestamp   TIMESTAMPTZ NOT NULL,
	request_id  TEXT,
	ip_address  TEXT,
	user_agent  TEXT,
	status_code INTEGER NOT NULL,
	bytes       BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_download_events_timestamp ON download_events(timestamp DESC);
`

// PostgresLedger is a PostgreSQL-backed Ledger.
type PostgresLedger struct {
	pool    *pgxpool.Pool
	ownPool bool
}

// NewPostgresLedger connects to connStr with its own pool and creates the
// events table if needed.
func NewPostgresLedger(ctx context.Context, connStr string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	l := &PostgresLedger{pool: pool, ownPool: true}
	if err := l.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLedgerFromPool uses an existing pool, which the caller keeps
// ownership of.
func NewPostgresLedgerFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresLedger, error) {
	l := &PostgresLedger{pool: pool}
	if err := l.migrate(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *PostgresLedger) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create download_events: %w", err)
	}
	return nil
}

// Close closes the pool if the ledger created it.
func (s *PostgresLedger) Close() error {
	if s.ownPool {
		s.pool.Close()
	}
	return nil
}

// Record inserts event.
func (s *PostgresLedger) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO download_events (id, timestamp, request_id, ip_address, user_agent, status_code, bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Timestamp,
		nullStr(event.RequestID), nullStr(event.IPAddress), nullStr(event.UserAgent),
		event.StatusCode, event.Bytes,
	)
	return err
}

// List returns events newest first.
func (s *PostgresLedger) List(ctx context.Context, opts ListOptions) ([]*Event, int, error) {
	where := "TRUE"
	var args []any
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where += " AND timestamp >= $" + strconv.Itoa(len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		where += " AND timestamp <= $" + strconv.Itoa(len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM download_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, normalizeLimit(opts.Limit), max(opts.Offset, 0))
	query := "SELECT id::text, timestamp, request_id, ip_address, user_agent, status_code, bytes FROM download_events WHERE " + where +
		" ORDER BY timestamp DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func scanEvent(row pgx.CollectableRow) (*Event, error) {
	var (
		e                        Event
		requestID, ip, userAgent *string
	)
	if err := row.Scan(&e.ID, &e.Timestamp, &requestID, &ip, &userAgent, &e.StatusCode, &e.Bytes); err != nil {
		return nil, err
	}
	if requestID != nil {
		e.RequestID = *requestID
	}
	if ip != nil {
		e.IPAddress = *ip
	}
	if userAgent != nil {
		e.UserAgent = *userAgent
	}
	return &e, nil
}

// Stats aggregates all rows.
func (s *PostgresLedger) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status_code BETWEEN 200 AND 299),
			COALESCE(SUM(bytes) FILTER (WHERE status_code BETWEEN 200 AND 299), 0)::bigint,
			MAX(timestamp) FILTER (WHERE status_code BETWEEN 200 AND 299)
		FROM download_events`).Scan(&st.Total, &st.Succeeded, &st.BytesServed, &st.LastDownload)
	if err != nil {
		return Stats{}, err
	}
	st.Failed = st.Total - st.Succeeded
	return st, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
