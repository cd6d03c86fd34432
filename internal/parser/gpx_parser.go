package parser

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/sstent/runlog/internal/models"
)

// GPXParser emits one run per <trk>, folding all of its segments together.
type GPXParser struct {
	logger *slog.Logger
}

func NewGPXParser(logger *slog.Logger) *GPXParser {
	return &GPXParser{logger: loggerOrDefault(logger)}
}

func (p *GPXParser) Parse(r io.Reader) ([]models.Run, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gpx: %w", err)
	}

	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode gpx: %w", err)
	}

	var runs []models.Run
	for i := range doc.Tracks {
		run := trackToRun(&doc.Tracks[i])
		if run == nil {
			p.logger.Debug("track has no usable time span or distance", "track", i+1, "name", doc.Tracks[i].Name)
			continue
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

// trackToRun returns nil when the track lacks start and end timestamps or
// covers no distance.
func trackToRun(track *gpx.GPXTrack) *models.Run {
	var (
		acc         trackAccumulator
		first, last time.Time
		points      []models.TrackPoint
	)

	for _, segment := range track.Segments {
		for _, pt := range segment.Points {
			fix := Fix{Lat: pt.Latitude, Lon: pt.Longitude}
			if pt.Elevation.NotNull() {
				fix.Elevation = floatPtr(pt.Elevation.Value())
			}
			acc.add(fix)

			tp := models.TrackPoint{Lat: fix.Lat, Lon: fix.Lon, Elevation: fix.Elevation}
			if !pt.Timestamp.IsZero() {
				ts := pt.Timestamp.UTC()
				tp.Time = &ts
				if first.IsZero() {
					first = ts
				}
				last = ts
			}
			points = append(points, tp)
		}
	}

	if first.IsZero() || last.IsZero() {
		return nil
	}
	duration := last.Sub(first).Minutes()
	if !positive(acc.distanceKm) || !positive(duration) {
		return nil
	}

	run := &models.Run{
		Date:         first,
		DistanceKm:   acc.distanceKm,
		DurationMin:  duration,
		PaceMinPerKm: duration / acc.distanceKm,
		Source:       models.SourceGPX,
		Notes:        track.Name,
		TrackPoints:  points,
	}
	if acc.gainM > 0 {
		run.ElevationGainM = floatPtr(acc.gainM)
	}

	return run
}
