package parser

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/tormoder/fit"

	"github.com/sstent/runlog/internal/models"
)

const (
	fitInvalidUint8  = 0xFF
	fitInvalidUint16 = 0xFFFF
)

// FITParser reads device activity files. Every running session becomes a run.
type FITParser struct {
	logger *slog.Logger
}

func NewFITParser(logger *slog.Logger) *FITParser {
	return &FITParser{logger: loggerOrDefault(logger)}
}

func (p *FITParser) Parse(r io.Reader) ([]models.Run, error) {
	fitFile, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FIT file: %w", err)
	}

	activity, err := fitFile.Activity()
	if err != nil {
		return nil, fmt.Errorf("failed to get activity from FIT: %w", err)
	}

	var runs []models.Run
	for i, session := range activity.Sessions {
		if session == nil || session.Sport != fit.SportRunning {
			continue
		}
		run := runFromSession(session)
		if run == nil {
			p.logger.Debug("session has no distance or duration", "session", i+1)
			continue
		}
		run.Splits = lapSplits(activity.Laps, session)
		run.TrackPoints = sessionTrack(activity.Records, session)
		runs = append(runs, *run)
	}

	return runs, nil
}

// runFromSession returns nil when the session lacks a positive distance or
// timer time.
func runFromSession(session *fit.SessionMsg) *models.Run {
	duration := session.GetTotalTimerTimeScaled() / 60
	distance := session.GetTotalDistanceScaled() / 1000
	if math.IsNaN(duration) || math.IsNaN(distance) || !positive(duration) || !positive(distance) {
		return nil
	}

	run := &models.Run{
		Date:         session.StartTime.UTC(),
		DistanceKm:   distance,
		DurationMin:  duration,
		PaceMinPerKm: models.Pace(distance, duration),
		Source:       models.SourceFIT,
	}
	if session.AvgHeartRate != fitInvalidUint8 && session.AvgHeartRate != 0 {
		run.AvgHeartRate = intPtr(int(session.AvgHeartRate))
	}
	if session.MaxHeartRate != fitInvalidUint8 && session.MaxHeartRate != 0 {
		run.MaxHeartRate = intPtr(int(session.MaxHeartRate))
	}
	if session.TotalCalories != fitInvalidUint16 && session.TotalCalories != 0 {
		run.Calories = intPtr(int(session.TotalCalories))
	}
	if session.TotalAscent != fitInvalidUint16 && session.TotalAscent != 0 {
		run.ElevationGainM = floatPtr(float64(session.TotalAscent))
	}

	return run
}

func within(t time.Time, session *fit.SessionMsg) bool {
	end := session.StartTime.Add(time.Duration(session.GetTotalElapsedTimeScaled() * float64(time.Second)))
	return !t.Before(session.StartTime) && !t.After(end)
}

func lapSplits(laps []*fit.LapMsg, session *fit.SessionMsg) []models.Split {
	var splits []models.Split
	for _, lap := range laps {
		if lap == nil || !within(lap.StartTime, session) {
			continue
		}
		seconds := lap.GetTotalTimerTimeScaled()
		if math.IsNaN(seconds) {
			continue
		}
		splits = append(splits, models.Split{
			Duration:     seconds / 60,
			DurationUnit: "min",
			Date:         lap.StartTime.UTC().Format(time.RFC3339),
		})
	}
	return splits
}

func sessionTrack(records []*fit.RecordMsg, session *fit.SessionMsg) []models.TrackPoint {
	var points []models.TrackPoint
	for _, rec := range records {
		if rec == nil || rec.PositionLat.Invalid() || rec.PositionLong.Invalid() || !within(rec.Timestamp, session) {
			continue
		}
		ts := rec.Timestamp.UTC()
		tp := models.TrackPoint{
			Lat:  rec.PositionLat.Degrees(),
			Lon:  rec.PositionLong.Degrees(),
			Time: &ts,
		}
		if alt := rec.GetAltitudeScaled(); !math.IsNaN(alt) {
			tp.Elevation = floatPtr(alt)
		}
		points = append(points, tp)
	}
	return points
}
