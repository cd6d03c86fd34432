// internal/database/models.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/sstent/runlog/internal/models"
)

var (
	// ErrDuplicateRun is returned when a run with the same date, distance and
	// duration is already stored.
	ErrDuplicateRun = errors.New("run already exists")
	ErrRunNotFound  = errors.New("run not found")
)

// Import status values
const (
	ImportStatusOK     = "ok"
	ImportStatusFailed = "failed"
)

// ImportRecord is one row of the import history.
type ImportRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type,omitempty"`
	Status     string    `json:"status"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	Total      int       `json:"total"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunFilters narrows and pages ListRuns.
type RunFilters struct {
	Source    models.Source
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Database interface
type Database interface {
	// Runs
	CreateRun(ctx context.Context, run *models.Run) (int64, error)
	RunExists(ctx context.Context, date time.Time, distanceKm, durationMin float64) (bool, error)
	GetRun(ctx context.Context, id int64) (*models.Run, error)
	ListRuns(ctx context.Context, filters RunFilters) ([]models.Run, error)

	// Import history
	RecordImport(ctx context.Context, rec *ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]ImportRecord, error)

	// Close connection
	Close() error
}
