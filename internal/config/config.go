package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir           string
	DBPath            string
	ListenAddr        string
	InboxDir          string
	ImportSchedule    string
	UploadDir         string
	MaxUploadMB       int64
	LogLevel          slog.Level
	SentryDSN         string
	SentryEnvironment string
}

// Load reads .env files (if present) and then the environment. Unset
// variables fall back to defaults rooted at DATA_DIR.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Info("No .env file found, using system environment variables")
	}

	dataDir := getenv("DATA_DIR", "./data")
	cfg := &Config{
		DataDir:           dataDir,
		DBPath:            getenv("DB_PATH", filepath.Join(dataDir, "runlog.db")),
		ListenAddr:        getenv("LISTEN_ADDR", ":8888"),
		InboxDir:          getenv("INBOX_DIR", filepath.Join(dataDir, "inbox")),
		ImportSchedule:    getenv("IMPORT_SCHEDULE", "@hourly"),
		UploadDir:         os.Getenv("UPLOAD_DIR"),
		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: getenv("SENTRY_ENVIRONMENT", "development"),
	}

	maxUpload, err := strconv.ParseInt(getenv("MAX_UPLOAD_MB", "512"), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %q", os.Getenv("MAX_UPLOAD_MB"))
	}
	cfg.MaxUploadMB = maxUpload

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// EnsureDirs creates the data and inbox directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, filepath.Dir(c.DBPath), c.InboxDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}

// NewLogger builds the JSON logger used by every component.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel})).With("service", "runlog")
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
