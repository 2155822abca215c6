package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// timeLayout has fixed width so created_at sorts correctly as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps reports in an embedded SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database file and runs migrations
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{db: conn}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			analyses TEXT NOT NULL,
			partial INTEGER NOT NULL DEFAULT 0,
			page_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_owner_created ON reports(owner, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Save(ctx context.Context, r *models.StoredReport) error {
	analyses, err := prepare(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, owner, text, analyses, partial, page_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Owner, r.Text, string(analyses), r.Partial, r.PageCount, r.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.StoredReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, text, analyses, partial, page_count, created_at
		FROM reports
		WHERE id = ?
	`, id)

	r, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, owner string, limit int) ([]models.StoredReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, text, analyses, partial, page_count, created_at
		FROM reports
		WHERE ? = '' OR owner = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, owner, owner, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.StoredReport{}
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*models.StoredReport, error) {
	var (
		r         models.StoredReport
		analyses  string
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.Owner, &r.Text, &analyses, &r.Partial, &r.PageCount, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(analyses), &r.Analyses); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	r.CreatedAt = t
	return &r, nil
}
