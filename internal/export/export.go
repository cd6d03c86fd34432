package export

import (
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/sstent/runlog/internal/models"
)

// Row is one line of the runs spreadsheet. Optional metrics are left blank.
type Row struct {
	Date          string `csv:"Date"`
	DistanceKm    string `csv:"Distance (km)"`
	DurationMin   string `csv:"Duration (min)"`
	Pace          string `csv:"Pace (min/km)"`
	AvgHeartRate  string `csv:"Avg Heart Rate"`
	MaxHeartRate  string `csv:"Max Heart Rate"`
	ElevationGain string `csv:"Elevation Gain (m)"`
	Calories      string `csv:"Calories"`
	Source        string `csv:"Source"`
}

func NewRow(run models.Run) Row {
	return Row{
		Date:          run.Date.UTC().Format(time.RFC3339),
		DistanceKm:    formatFloat(run.DistanceKm, 2),
		DurationMin:   formatFloat(run.DurationMin, 2),
		Pace:          formatFloat(run.PaceMinPerKm, 2),
		AvgHeartRate:  optionalInt(run.AvgHeartRate),
		MaxHeartRate:  optionalInt(run.MaxHeartRate),
		ElevationGain: optionalFloat(run.ElevationGainM, 1),
		Calories:      optionalInt(run.Calories),
		Source:        string(run.Source),
	}
}

// WriteCSV writes runs with a header row. The result reads back through the
// CSV importer.
func WriteCSV(w io.Writer, runs []models.Run) error {
	rows := make([]Row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, NewRow(run))
	}
	return gocsv.Marshal(&rows, w)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, prec)
}
