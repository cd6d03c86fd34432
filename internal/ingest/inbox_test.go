package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestImportDir(t *testing.T) {
	inbox := t.TempDir()
	writeFile(t, filepath.Join(inbox, "runs.csv"), runsCSV)
	writeFile(t, filepath.Join(inbox, "notes.txt"), "not a workout")
	writeFile(t, filepath.Join(inbox, ".DS_Store"), "")
	require.NoError(t, os.Mkdir(filepath.Join(inbox, "nested"), 0755))

	store := newMemStore()
	svc := NewService(store, discardLogger, "")

	result, err := svc.ImportDir(context.Background(), inbox)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 3, result.Total)

	assert.FileExists(t, filepath.Join(inbox, processedDir, "runs.csv"))
	assert.FileExists(t, filepath.Join(inbox, failedDir, "notes.txt"))
	assert.FileExists(t, filepath.Join(inbox, ".DS_Store"))
	assert.NoFileExists(t, filepath.Join(inbox, "runs.csv"))

	// A second sweep finds nothing new.
	result, err = svc.ImportDir(context.Background(), inbox)
	require.NoError(t, err)
	assert.Zero(t, result.Files)
}

func TestImportDirNameCollision(t *testing.T) {
	inbox := t.TempDir()
	svc := NewService(newMemStore(), discardLogger, "")

	writeFile(t, filepath.Join(inbox, "runs.csv"), runsCSV)
	_, err := svc.ImportDir(context.Background(), inbox)
	require.NoError(t, err)

	writeFile(t, filepath.Join(inbox, "runs.csv"), runsCSV)
	result, err := svc.ImportDir(context.Background(), inbox)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Skipped)

	entries, err := os.ReadDir(filepath.Join(inbox, processedDir))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestImportDirMissingInbox(t *testing.T) {
	svc := NewService(newMemStore(), discardLogger, "")

	result, err := svc.ImportDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, result.Files)
}

func TestSchedule(t *testing.T) {
	svc := NewService(newMemStore(), discardLogger, "")
	c := cron.New()

	id, err := svc.Schedule(c, "@hourly", t.TempDir())
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)

	_, err = svc.Schedule(c, "every now and then", t.TempDir())
	assert.Error(t, err)
}
