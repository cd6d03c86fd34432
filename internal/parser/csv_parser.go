package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/gocarina/gocsv"

	"github.com/sstent/runlog/internal/models"
)

// Candidate header substrings per field, in priority order.
var (
	dateColumns         = []string{"date", "time", "start"}
	distanceColumns     = []string{"distance", "dist", "km", "miles"}
	durationColumns     = []string{"duration", "time", "minutes", "mins"}
	paceColumns         = []string{"pace", "avg pace", "average pace"}
	avgHeartRateColumns = []string{"heart rate", "hr", "avg hr", "avghr"}
	maxHeartRateColumns = []string{"max heart rate", "max hr", "maxhr"}
	elevationColumns    = []string{"elevation", "elev", "elevation gain"}
	caloriesColumns     = []string{"calories", "cal", "kcal"}
)

// csvColumns holds resolved column indexes, -1 when a field has no column.
type csvColumns struct {
	date, distance, duration, pace    int
	avgHR, maxHR, elevation, calories int
	miles                             bool
}

// CSVParser maps spreadsheet exports with free-form headers onto runs.
type CSVParser struct {
	logger *slog.Logger
}

func NewCSVParser(logger *slog.Logger) *CSVParser {
	return &CSVParser{logger: loggerOrDefault(logger)}
}

func (p *CSVParser) Parse(r io.Reader) ([]models.Run, error) {
	reader := gocsv.LazyCSVReader(r)
	if cr, ok := reader.(*csv.Reader); ok {
		cr.FieldsPerRecord = -1
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	cols := resolveColumns(header)

	var runs []models.Run
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, csv.ErrFieldCount) {
			return runs, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}

		run, ok := p.rowToRun(line, record, cols)
		if ok {
			runs = append(runs, *run)
		}
	}

	return runs, nil
}

func (p *CSVParser) rowToRun(line int, record []string, cols csvColumns) (*models.Run, bool) {
	dateText := cell(record, cols.date)
	distance, _ := leadingFloat(cell(record, cols.distance))
	duration, _ := ParseCSVDuration(cell(record, cols.duration))
	if dateText == "" || !positive(distance) || !positive(duration) {
		return nil, false
	}

	date, ok := parseDate(dateText)
	if !ok {
		p.logger.Warn("skipping csv row with unreadable date", "line", line, "date", dateText)
		return nil, false
	}

	if cols.miles {
		distance *= models.MilesToKm
	}

	run := &models.Run{
		Date:         date,
		DistanceKm:   distance,
		DurationMin:  duration,
		PaceMinPerKm: models.Pace(distance, duration),
		Source:       models.SourceCSV,
	}
	if v := cell(record, cols.pace); v != "" {
		if pace, ok := leadingFloat(v); ok {
			run.PaceMinPerKm = pace
		}
	}
	if v, ok := leadingInt(cell(record, cols.avgHR)); ok && v != 0 {
		run.AvgHeartRate = intPtr(v)
	}
	if v, ok := leadingInt(cell(record, cols.maxHR)); ok && v != 0 {
		run.MaxHeartRate = intPtr(v)
	}
	if v, ok := leadingFloat(cell(record, cols.elevation)); ok && v != 0 {
		run.ElevationGainM = floatPtr(v)
	}
	if v, ok := leadingInt(cell(record, cols.calories)); ok && v != 0 {
		run.Calories = intPtr(v)
	}

	return run, true
}

func resolveColumns(header []string) csvColumns {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cols := csvColumns{
		date:      resolveColumn(lower, dateColumns),
		distance:  resolveColumn(lower, distanceColumns),
		duration:  resolveColumn(lower, durationColumns),
		pace:      resolveColumn(lower, paceColumns),
		avgHR:     resolveColumn(lower, avgHeartRateColumns),
		maxHR:     resolveColumn(lower, maxHeartRateColumns),
		elevation: resolveColumn(lower, elevationColumns),
		calories:  resolveColumn(lower, caloriesColumns),
	}

	for _, h := range lower {
		if strings.Contains(h, "mile") {
			cols.miles = true
		}
	}
	if cols.distance >= 0 && hasToken(lower[cols.distance], "mi") {
		cols.miles = true
	}

	return cols
}

// resolveColumn returns the index of the first header containing the
// earliest candidate, or -1. headers must already be lowercased.
func resolveColumn(headers, candidates []string) int {
	for _, candidate := range candidates {
		for i, h := range headers {
			if strings.Contains(h, candidate) {
				return i
			}
		}
	}
	return -1
}

// hasToken reports whether s contains word as a standalone run of letters,
// so "distance (mi)" has "mi" but "minutes" does not.
func hasToken(s, word string) bool {
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if tok == word {
			return true
		}
	}
	return false
}

// ParseCSVDuration reads minutes from a bare number, "MM:SS" or "H:MM:SS".
// Any other colon count falls back to the numeric prefix of the whole value.
func ParseCSVDuration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")

	values := make([]float64, len(parts))
	if len(parts) == 2 || len(parts) == 3 {
		for i, part := range parts {
			v, ok := leadingFloat(part)
			if !ok {
				return 0, false
			}
			values[i] = v
		}
	}

	switch len(parts) {
	case 2:
		return values[0] + values[1]/60, true
	case 3:
		return values[0]*60 + values[1] + values[2]/60, true
	default:
		return leadingFloat(s)
	}
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
