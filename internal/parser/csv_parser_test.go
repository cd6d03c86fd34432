package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sstent/runlog/internal/models"
)

func TestParseCSVDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1:30:00", 90, true},
		{"5:30", 5.5, true},
		{"42", 42, true},
		{" 27.5 ", 27.5, true},
		{"0:45:30", 45.5, true},
		{"1:2:3:4", 1, true},
		{"5:xx", 0, false},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCSVDuration(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestResolveColumns(t *testing.T) {
	cols := resolveColumns([]string{"Workout Date", "Distance (mi)", "Moving Time"})
	assert.Equal(t, 0, cols.date)
	assert.Equal(t, 1, cols.distance)
	assert.Equal(t, 2, cols.duration)
	assert.Equal(t, -1, cols.pace)
	assert.True(t, cols.miles)

	cols = resolveColumns([]string{"date", "distance", "minutes"})
	assert.Equal(t, 2, cols.duration)
	assert.False(t, cols.miles)

	cols = resolveColumns([]string{"Date", "Miles", "Time"})
	assert.Equal(t, 1, cols.distance)
	assert.True(t, cols.miles)
}

func parseCSV(t *testing.T, doc string) []models.Run {
	t.Helper()
	runs, err := NewCSVParser(discardLogger).Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return runs
}

func TestCSVParserMiles(t *testing.T) {
	runs := parseCSV(t, "Workout Date,Distance (mi),Moving Time\n2024-05-04,3.1,30:30\n")
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, models.SourceCSV, run.Source)
	assert.Equal(t, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), run.Date)
	assert.InDelta(t, 3.1*models.MilesToKm, run.DistanceKm, 1e-9)
	assert.InDelta(t, 30.5, run.DurationMin, 1e-9)
	assert.InDelta(t, 30.5/(3.1*models.MilesToKm), run.PaceMinPerKm, 1e-9)
}

func TestCSVParserOptionalColumns(t *testing.T) {
	doc := "Date,Distance,Duration,Pace,Avg HR,Max HR,Elevation,Calories\n" +
		"2024-01-01,5,25:00,4.75,150.7,171,42.5,0\n" +
		"2024-01-02,10,1:00:00,,,,,\n"

	runs := parseCSV(t, doc)
	require.Len(t, runs, 2)

	first := runs[0]
	assert.Equal(t, 4.75, first.PaceMinPerKm)
	require.NotNil(t, first.AvgHeartRate)
	assert.Equal(t, 150, *first.AvgHeartRate)
	require.NotNil(t, first.MaxHeartRate)
	assert.Equal(t, 171, *first.MaxHeartRate)
	require.NotNil(t, first.ElevationGainM)
	assert.Equal(t, 42.5, *first.ElevationGainM)
	assert.Nil(t, first.Calories)

	second := runs[1]
	assert.Equal(t, 60.0, second.DurationMin)
	assert.Equal(t, 6.0, second.PaceMinPerKm)
	assert.Nil(t, second.AvgHeartRate)
	assert.Nil(t, second.MaxHeartRate)
	assert.Nil(t, second.ElevationGainM)
}

func TestCSVParserSkipsUnusableRows(t *testing.T) {
	doc := "Date,Distance,Duration\n" +
		",5,25\n" +
		"2024-01-01,0,25\n" +
		"2024-01-01,5,\n" +
		"yesterday,5,25\n" +
		"\n" +
		"2024-01-03,5\n" +
		"2024-01-04,8,40,extra\n"

	runs := parseCSV(t, doc)
	require.Len(t, runs, 1)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), runs[0].Date)
	assert.Equal(t, 8.0, runs[0].DistanceKm)
}

func TestCSVParserByteOrderMark(t *testing.T) {
	runs := parseCSV(t, "\ufeffDate,Distance,Duration\n2024-01-02,10,50\n")
	require.Len(t, runs, 1)
	assert.Equal(t, 5.0, runs[0].PaceMinPerKm)
}

func TestCSVParserEmptyInput(t *testing.T) {
	assert.Empty(t, parseCSV(t, ""))
	assert.Empty(t, parseCSV(t, "Date,Distance,Duration\n"))
}
