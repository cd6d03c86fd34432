package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// SweepResult totals one pass over an inbox directory.
type SweepResult struct {
	Files  int
	Failed int
	Summary
}

// ImportDir ingests every regular file in dir. Imported files move to
// dir/processed and rejected ones to dir/failed, so a file is tried once.
// One bad file never stops the sweep.
func (s *Service) ImportDir(ctx context.Context, dir string) (SweepResult, error) {
	var result SweepResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("read inbox %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		result.Files++
		path := filepath.Join(dir, entry.Name())
		summary, err := s.IngestFile(ctx, entry.Name(), path)

		target := processedDir
		if err != nil {
			result.Failed++
			target = failedDir
		}
		result.Imported += summary.Imported
		result.Skipped += summary.Skipped
		result.Total += summary.Total

		if err := moveInto(path, filepath.Join(dir, target)); err != nil {
			return result, err
		}
	}

	return result, nil
}

func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(target)
		target = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(target, ext), time.Now().UnixNano(), ext)
	}

	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("move %s: %w", path, err)
	}
	return nil
}

// Schedule registers a periodic inbox sweep on c.
func (s *Service) Schedule(c *cron.Cron, spec, dir string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		s.logger.Info("starting scheduled import", "dir", dir)
		result, err := s.ImportDir(context.Background(), dir)
		if err != nil {
			s.logger.Error("scheduled import failed", "dir", dir, "error", err)
			return
		}
		s.logger.Info("scheduled import finished",
			"files", result.Files,
			"failed", result.Failed,
			"imported", result.Imported,
			"skipped", result.Skipped)
	})
}
