package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sstent/runlog/internal/database"
	"github.com/sstent/runlog/internal/models"
	"github.com/sstent/runlog/internal/parser"
)

// Store is the persistence the coordinator needs. The store's own uniqueness
// constraint is the final arbiter between concurrent imports.
type Store interface {
	RunExists(ctx context.Context, date time.Time, distanceKm, durationMin float64) (bool, error)
	CreateRun(ctx context.Context, run *models.Run) (int64, error)
}

// ImportRecorder is implemented by stores that keep an import history.
type ImportRecorder interface {
	RecordImport(ctx context.Context, rec *database.ImportRecord) error
}

// Summary reports one ingest call. Imported + Skipped always equals Total.
type Summary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

type Service struct {
	store     Store
	logger    *slog.Logger
	uploadDir string
}

// NewService wires the coordinator to a store. uploadDir holds upload temp
// files; empty means the OS temp dir.
func NewService(store Store, logger *slog.Logger, uploadDir string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		logger:    logger.With("component", "ingest"),
		uploadDir: uploadDir,
	}
}

// Ingest imports a document already held in memory, using the tree parsers.
// It is the API for small documents, such as API clients posting a body or
// tests. Uploads, CLI imports and the inbox go through IngestFile, which
// never holds the whole file.
func (s *Service) Ingest(ctx context.Context, filename, content string) (Summary, error) {
	started := time.Now()

	fileType, err := parser.DetectFromContent(filename, content)
	if err != nil {
		s.record(ctx, filename, fileType, Summary{}, err, started)
		return Summary{}, err
	}

	summary, err := s.parseAndStore(ctx, fileType, strings.NewReader(content))
	s.record(ctx, filename, fileType, summary, err, started)
	return summary, err
}

// IngestFile imports a file on disk. Detection and parsing are two separate
// passes, and Apple Health exports are read with the streaming parser unless
// their lines are too long for it.
func (s *Service) IngestFile(ctx context.Context, filename, path string) (Summary, error) {
	started := time.Now()

	fileType, err := parser.DetectFromFile(filename, path)
	if err != nil {
		s.record(ctx, filename, fileType, Summary{}, err, started)
		return Summary{}, err
	}

	summary, err := s.ingestPath(ctx, fileType, path)
	s.record(ctx, filename, fileType, summary, err, started)
	return summary, err
}

func (s *Service) ingestPath(ctx context.Context, fileType parser.FileType, path string) (Summary, error) {
	runs, err := parser.ParseFile(fileType, path, s.logger)
	if err != nil {
		return Summary{}, fmt.Errorf("parse %s: %w", fileType, err)
	}

	return s.storeRuns(ctx, runs)
}

// IngestUpload spools r to a temp file and ingests it from disk. The temp
// file is removed whether or not the import succeeds. Unsupported extensions
// are rejected before anything is read from r.
func (s *Service) IngestUpload(ctx context.Context, filename string, r io.Reader) (Summary, error) {
	if err := parser.CheckExtension(filename); err != nil {
		s.record(ctx, filename, parser.FileTypeUnknown, Summary{}, err, time.Now())
		return Summary{}, err
	}

	name := strings.ReplaceAll(filepath.Base(filename), "*", "_")
	tmp, err := os.CreateTemp(s.uploadDir, "upload-*-"+name)
	if err != nil {
		return Summary{}, fmt.Errorf("create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return Summary{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Summary{}, fmt.Errorf("write upload file: %w", err)
	}

	return s.IngestFile(ctx, filename, tmp.Name())
}

func (s *Service) parseAndStore(ctx context.Context, fileType parser.FileType, r io.Reader) (Summary, error) {
	p, err := parser.NewParser(fileType, false, s.logger)
	if err != nil {
		return Summary{}, err
	}

	runs, err := p.Parse(r)
	if err != nil {
		return Summary{}, fmt.Errorf("parse %s: %w", fileType, err)
	}

	return s.storeRuns(ctx, runs)
}

// storeRuns inserts every run not already present. Runs inserted before a
// storage failure stay committed.
func (s *Service) storeRuns(ctx context.Context, runs []models.Run) (Summary, error) {
	summary := Summary{Total: len(runs)}

	for i := range runs {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		run := &runs[i]
		exists, err := s.store.RunExists(ctx, run.Date, run.DistanceKm, run.DurationMin)
		if err != nil {
			return summary, fmt.Errorf("check run %d/%d: %w", i+1, len(runs), err)
		}
		if exists {
			summary.Skipped++
			continue
		}

		if _, err := s.store.CreateRun(ctx, run); err != nil {
			return summary, fmt.Errorf("insert run %d/%d: %w", i+1, len(runs), err)
		}
		summary.Imported++
	}

	return summary, nil
}

func (s *Service) record(ctx context.Context, filename string, fileType parser.FileType, summary Summary, ingestErr error, started time.Time) {
	logger := s.logger.With("filename", filename, "format", string(fileType))
	if ingestErr != nil {
		logger.Error("import failed", "error", ingestErr)
	} else {
		logger.Info("import finished",
			"imported", summary.Imported,
			"skipped", summary.Skipped,
			"total", summary.Total,
			"duration", time.Since(started))
	}

	recorder, ok := s.store.(ImportRecorder)
	if !ok {
		return
	}

	rec := &database.ImportRecord{
		ID:         uuid.NewString(),
		Filename:   filename,
		Status:     database.ImportStatusOK,
		Imported:   summary.Imported,
		Skipped:    summary.Skipped,
		Total:      summary.Total,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if fileType != parser.FileTypeUnknown {
		rec.FileType = string(fileType)
	}
	if ingestErr != nil {
		rec.Status = database.ImportStatusFailed
		rec.Error = ingestErr.Error()
	}

	// History is written even when the request context is already done.
	if err := recorder.RecordImport(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record import", "error", err)
	}
}

// IsUnsupported reports whether err means the file format was not recognized.
func IsUnsupported(err error) bool {
	return errors.Is(err, parser.ErrUnsupportedFormat)
}
