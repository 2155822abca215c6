package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL,
	analyses   JSONB NOT NULL,
	partial    BOOLEAN NOT NULL DEFAULT FALSE,
	page_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_owner_created ON reports (owner, created_at DESC);
`

// PostgresStore keeps reports in PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, verifies the connection and creates the schema
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("no database configuration")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings optimized for PgBouncer
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Save(ctx context.Context, r *models.StoredReport) error {
	analyses, err := prepare(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (id, owner, text, analyses, partial, page_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.Owner, r.Text, analyses, r.Partial, r.PageCount, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.StoredReport, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, text, analyses, partial, page_count, created_at
		FROM reports
		WHERE id = $1
	`, id)

	r, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, owner string, limit int) ([]models.StoredReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, text, analyses, partial, page_count, created_at
		FROM reports
		WHERE $1::text = '' OR owner = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, owner, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.StoredReport{}
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (*models.StoredReport, error) {
	var (
		r        models.StoredReport
		analyses []byte
	)
	if err := row.Scan(&r.ID, &r.Owner, &r.Text, &analyses, &r.Partial, &r.PageCount, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(analyses, &r.Analyses); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}
	return &r, nil
}
