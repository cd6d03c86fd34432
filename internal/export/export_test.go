package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sstent/runlog/internal/models"
	"github.com/sstent/runlog/internal/parser"
)

func sampleRuns() []models.Run {
	hr, calories := 148, 520
	gain := 61.27
	return []models.Run{
		{
			Date:           time.Date(2024, 7, 1, 6, 15, 0, 0, time.UTC),
			DistanceKm:     8.4,
			DurationMin:    42,
			PaceMinPerKm:   5,
			AvgHeartRate:   &hr,
			ElevationGainM: &gain,
			Calories:       &calories,
			Source:         models.SourceAppleHealth,
		},
		{
			Date:         time.Date(2024, 7, 3, 18, 0, 0, 0, time.FixedZone("EDT", -4*3600)),
			DistanceKm:   5,
			DurationMin:  27.5,
			PaceMinPerKm: 5.5,
			Source:       models.SourceCSV,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRuns()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Distance (km),Duration (min),Pace (min/km),Avg Heart Rate,Max Heart Rate,Elevation Gain (m),Calories,Source", lines[0])
	assert.Equal(t, "2024-07-01T06:15:00Z,8.40,42.00,5.00,148,,61.3,520,apple_health", lines[1])
	assert.Equal(t, "2024-07-03T22:00:00Z,5.00,27.50,5.50,,,,,csv", lines[2])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "Date,Distance (km)"))
}

func TestExportReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRuns()))

	runs, err := parser.NewCSVParser(nil).Parse(&buf)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	first := runs[0]
	assert.Equal(t, time.Date(2024, 7, 1, 6, 15, 0, 0, time.UTC), first.Date)
	assert.InDelta(t, 8.4, first.DistanceKm, 1e-9)
	assert.InDelta(t, 42.0, first.DurationMin, 1e-9)
	assert.InDelta(t, 5.0, first.PaceMinPerKm, 1e-9)
	require.NotNil(t, first.AvgHeartRate)
	assert.Equal(t, 148, *first.AvgHeartRate)
	assert.Nil(t, first.MaxHeartRate)
	require.NotNil(t, first.Calories)
	assert.Equal(t, 520, *first.Calories)

	second := runs[1]
	assert.Equal(t, time.Date(2024, 7, 3, 22, 0, 0, 0, time.UTC), second.Date)
	assert.Nil(t, second.AvgHeartRate)
	assert.Nil(t, second.ElevationGainM)
}
