// Package db persists generated reports. Two backends are available: a
// PostgreSQL store on a pgx pool and an embedded SQLite store.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/empire-ui/report-ocr-service/internal/models"
)

// ErrNotFound is returned by Get when no report has the given ID
var ErrNotFound = errors.New("report not found")

// DefaultListLimit caps List when the caller passes no limit
const DefaultListLimit = 50

// Store saves and loads generated reports
type Store interface {
	Name() string
	Save(ctx context.Context, r *models.StoredReport) error
	Get(ctx context.Context, id string) (*models.StoredReport, error)
	// List returns the newest reports first. An empty owner lists every report.
	List(ctx context.Context, owner string, limit int) ([]models.StoredReport, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver. An empty driver disables
// persistence and returns a nil Store.
func Open(ctx context.Context, cfg models.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

// prepare fills the generated fields of a report before it is inserted
func prepare(r *models.StoredReport) ([]byte, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Analyses == nil {
		r.Analyses = []models.SectionAnalysis{}
	}
	analyses, err := json.Marshal(r.Analyses)
	if err != nil {
		return nil, fmt.Errorf("encode analyses: %w", err)
	}
	return analyses, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
