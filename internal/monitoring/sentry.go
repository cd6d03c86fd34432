package monitoring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Init sets up error reporting. Without a DSN reporting stays disabled and
// Capture is a no-op.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		logger.Debug("Sentry DSN not configured, error reporting disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	logger.Info("Sentry initialized", "environment", cfg.Environment)
	return nil
}

// Capture reports err with string tags such as the upload filename.
func Capture(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush waits for queued events before shutdown.
func Flush() {
	sentry.Flush(2 * time.Second)
}
