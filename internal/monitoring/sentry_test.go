package monitoring

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitWithoutDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NoError(t, Init(Config{Environment: "test"}, logger))

	assert.NotPanics(t, func() {
		Capture(errors.New("boom"), map[string]string{"filename": "runs.csv"})
		Capture(nil, nil)
	})
}

func TestInitRejectsBadDSN(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Error(t, Init(Config{DSN: "not a dsn"}, logger))
}
