package models

import (
	"encoding/json"
	"time"
)

// Source identifies which importer produced a run
type Source string

const (
	SourceAppleHealth Source = "apple_health"
	SourceGPX         Source = "gpx"
	SourceCSV         Source = "csv"
	SourceFIT         Source = "fit"
)

const (
	MilesToKm = 1.60934
	KmToMiles = 0.621371
)

// Run is the normalized, metric-unit record produced by every parser.
// Optional metrics are nil when the source did not provide them.
type Run struct {
	ID        int64     `json:"id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	Date         time.Time `json:"date"`
	DistanceKm   float64   `json:"distance_km"`
	DurationMin  float64   `json:"duration_min"`
	PaceMinPerKm float64   `json:"pace_min_per_km"`

	AvgHeartRate   *int     `json:"avg_heart_rate,omitempty"`
	MaxHeartRate   *int     `json:"max_heart_rate,omitempty"`
	ElevationGainM *float64 `json:"elevation_gain_m,omitempty"`
	Calories       *int     `json:"calories,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Source         Source   `json:"source"`

	// Apple Health running metrics
	StepCount             *int     `json:"step_count,omitempty"`
	RunningPowerW         *float64 `json:"running_power_w,omitempty"`
	GroundContactTimeMs   *float64 `json:"ground_contact_time_ms,omitempty"`
	RunningSpeedKmh       *float64 `json:"running_speed_kmh,omitempty"`
	VerticalOscillationCm *float64 `json:"vertical_oscillation_cm,omitempty"`
	StrideLengthM         *float64 `json:"stride_length_m,omitempty"`
	WorkoutName           string   `json:"workout_name,omitempty"`
	Indoor                *bool    `json:"indoor,omitempty"`
	SourceName            string   `json:"source_name,omitempty"`
	Splits                []Split  `json:"splits,omitempty"`

	TrackPoints []TrackPoint    `json:"track_points,omitempty"`
	RawData     json.RawMessage `json:"raw_data,omitempty"`
}

// Split is one lap marker from a workout
type Split struct {
	Duration     float64 `json:"duration"`
	DurationUnit string  `json:"duration_unit"`
	Date         string  `json:"date,omitempty"`
}

// TrackPoint is a raw GPS fix kept alongside GPX runs
type TrackPoint struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Elevation *float64   `json:"ele,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
}

// Pace returns minutes per kilometer, 0 when the distance is 0.
func Pace(distanceKm, durationMin float64) float64 {
	if distanceKm == 0 {
		return 0
	}
	return durationMin / distanceKm
}
