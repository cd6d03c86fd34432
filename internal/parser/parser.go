package parser

import (
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sstent/runlog/internal/models"
)

// Parser turns one uploaded document into normalized runs.
type Parser interface {
	Parse(r io.Reader) ([]models.Run, error)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

var leadingNumber = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// leadingFloat parses the numeric prefix of s ("5.2 km" -> 5.2). ok is false
// when s does not start with a number.
func leadingFloat(s string) (float64, bool) {
	m := leadingNumber.FindString(s)
	if m == "" {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}

// leadingInt truncates the numeric prefix of s toward zero.
func leadingInt(s string) (int, bool) {
	v, ok := leadingFloat(s)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(v)), true
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
}

// parseDate accepts the timestamp shapes seen in health exports and
// spreadsheets and returns the instant in UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
