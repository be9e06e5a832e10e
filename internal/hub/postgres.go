package hub

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const reportsSchema = `
CREATE TABLE IF NOT EXISTS client_reports (
	id                UUID PRIMARY KEY,
	ip                TEXT NOT NULL,
	status            TEXT NOT NULL,
	remaining_seconds BIGINT NOT NULL,
	shutdown_delay    INT NOT NULL,
	received_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS client_reports_ip_received_idx
	ON client_reports (ip, received_at DESC);
`

// PostgresStore persists client reports in postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Connection testen
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, reportsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, report Report) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_reports (id, ip, status, remaining_seconds, shutdown_delay, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		report.ID, report.IP, report.Status, report.RemainingSeconds,
		report.ShutdownDelay, report.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestByClient(ctx context.Context) ([]Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (ip) id, ip, status, remaining_seconds, shutdown_delay, received_at
		 FROM client_reports
		 ORDER BY ip, received_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.IP, &r.Status, &r.RemainingSeconds,
			&r.ShutdownDelay, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
