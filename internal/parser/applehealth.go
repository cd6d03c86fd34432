package parser

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/sstent/runlog/internal/models"
)

const (
	statDistance            = "HKQuantityTypeIdentifierDistanceWalkingRunning"
	statActiveEnergy        = "HKQuantityTypeIdentifierActiveEnergyBurned"
	statHeartRate           = "HKQuantityTypeIdentifierHeartRate"
	statStepCount           = "HKQuantityTypeIdentifierStepCount"
	statRunningPower        = "HKQuantityTypeIdentifierRunningPower"
	statGroundContactTime   = "HKQuantityTypeIdentifierRunningGroundContactTime"
	statRunningSpeed        = "HKQuantityTypeIdentifierRunningSpeed"
	statVerticalOscillation = "HKQuantityTypeIdentifierRunningVerticalOscillation"
	statStrideLength        = "HKQuantityTypeIdentifierRunningStrideLength"

	metaBrandName = "HKWorkoutBrandName"
	metaIndoor    = "HKIndoorWorkout"

	eventLap = "HKWorkoutEventTypeLap"
)

// healthWorkout is one <Workout> element with every attribute kept as text.
// Both the tree and the streaming parser fill it in, then share toRun.
type healthWorkout struct {
	ActivityType  string            `xml:"workoutActivityType,attr" json:"workoutActivityType,omitempty"`
	Duration      string            `xml:"duration,attr" json:"duration,omitempty"`
	DurationUnit  string            `xml:"durationUnit,attr" json:"durationUnit,omitempty"`
	SourceName    string            `xml:"sourceName,attr" json:"sourceName,omitempty"`
	SourceVersion string            `xml:"sourceVersion,attr" json:"sourceVersion,omitempty"`
	Device        string            `xml:"device,attr" json:"device,omitempty"`
	CreationDate  string            `xml:"creationDate,attr" json:"creationDate,omitempty"`
	StartDate     string            `xml:"startDate,attr" json:"startDate,omitempty"`
	EndDate       string            `xml:"endDate,attr" json:"endDate,omitempty"`
	Statistics    []healthStatistic `xml:"WorkoutStatistics" json:"workoutStats,omitempty"`
	Metadata      []healthMetadata  `xml:"MetadataEntry" json:"metadata,omitempty"`
	Events        []healthEvent     `xml:"WorkoutEvent" json:"events,omitempty"`
}

type healthStatistic struct {
	Type      string `xml:"type,attr" json:"type"`
	StartDate string `xml:"startDate,attr" json:"startDate,omitempty"`
	EndDate   string `xml:"endDate,attr" json:"endDate,omitempty"`
	Average   string `xml:"average,attr" json:"average,omitempty"`
	Minimum   string `xml:"minimum,attr" json:"minimum,omitempty"`
	Maximum   string `xml:"maximum,attr" json:"maximum,omitempty"`
	Sum       string `xml:"sum,attr" json:"sum,omitempty"`
	Unit      string `xml:"unit,attr" json:"unit,omitempty"`
}

type healthMetadata struct {
	Key   string `xml:"key,attr" json:"key"`
	Value string `xml:"value,attr" json:"value"`
}

type healthEvent struct {
	Type         string `xml:"type,attr" json:"type"`
	Date         string `xml:"date,attr" json:"date,omitempty"`
	Duration     string `xml:"duration,attr" json:"duration,omitempty"`
	DurationUnit string `xml:"durationUnit,attr" json:"durationUnit,omitempty"`
}

type healthData struct {
	XMLName  xml.Name
	Workouts []healthWorkout `xml:"Workout"`
}

// AppleHealthParser reads a whole export.xml into memory before extracting
// running workouts. Use AppleHealthStreamParser for exports that do not fit.
type AppleHealthParser struct {
	logger *slog.Logger
}

func NewAppleHealthParser(logger *slog.Logger) *AppleHealthParser {
	return &AppleHealthParser{logger: loggerOrDefault(logger)}
}

func (p *AppleHealthParser) Parse(r io.Reader) ([]models.Run, error) {
	var doc healthData
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode health export: %w", err)
	}
	if doc.XMLName.Local != "HealthData" {
		return nil, nil
	}

	var runs []models.Run
	for i, workout := range doc.Workouts {
		run, err := workout.toRun(i + 1)
		if err != nil {
			p.logger.Warn("skipping workout", "error", err)
			continue
		}
		if run != nil {
			runs = append(runs, *run)
		}
	}

	return runs, nil
}

func (w *healthWorkout) isRunning() bool {
	return strings.Contains(w.ActivityType, "Running")
}

// toRun converts a workout into a run. It returns nil, nil for workouts that
// are not runs or lack a positive distance and duration.
func (w *healthWorkout) toRun(index int) (*models.Run, error) {
	if !w.isRunning() {
		return nil, nil
	}

	malformed := func(format string, args ...interface{}) error {
		return &MalformedRecordError{Index: index, Err: fmt.Errorf(format, args...)}
	}

	duration, err := attrFloat(w.Duration)
	if err != nil {
		return nil, malformed("duration: %w", err)
	}
	if w.DurationUnit == "hr" {
		duration *= 60
	}

	run := &models.Run{
		Source:      models.SourceAppleHealth,
		DurationMin: duration,
		SourceName:  w.SourceName,
	}

	for _, stat := range w.Statistics {
		if err := applyStatistic(run, stat); err != nil {
			return nil, malformed("%s: %w", stat.Type, err)
		}
	}

	for _, entry := range w.Metadata {
		switch entry.Key {
		case metaBrandName:
			run.WorkoutName = entry.Value
		case metaIndoor:
			v, ok := leadingInt(entry.Value)
			if !ok {
				return nil, malformed("%s: invalid value %q", metaIndoor, entry.Value)
			}
			run.Indoor = boolPtr(v != 0)
		}
	}

	for _, event := range w.Events {
		if event.Type != eventLap || event.Duration == "" {
			continue
		}
		d, err := attrFloat(event.Duration)
		if err != nil {
			return nil, malformed("lap duration: %w", err)
		}
		unit := event.DurationUnit
		if unit == "" {
			unit = "min"
		}
		run.Splits = append(run.Splits, models.Split{Duration: d, DurationUnit: unit, Date: event.Date})
	}

	if !positive(run.DistanceKm) || !positive(run.DurationMin) {
		return nil, nil
	}

	date, ok := parseDate(w.StartDate)
	if !ok {
		return nil, malformed("start date %q", w.StartDate)
	}
	run.Date = date
	run.PaceMinPerKm = models.Pace(run.DistanceKm, run.DurationMin)

	raw, err := json.Marshal(w)
	if err != nil {
		return nil, malformed("raw data: %w", err)
	}
	run.RawData = raw

	return run, nil
}

func applyStatistic(run *models.Run, stat healthStatistic) error {
	switch stat.Type {
	case statDistance:
		distance, err := attrFloat(stat.Sum)
		if err != nil {
			return err
		}
		if stat.Unit == "mi" {
			distance *= models.MilesToKm
		}
		run.DistanceKm = distance
	case statActiveEnergy:
		v, err := optionalFloat(stat.Sum)
		if err != nil || v == nil {
			return err
		}
		run.Calories = intPtr(int(math.Trunc(*v)))
	case statHeartRate:
		avg, err := optionalFloat(stat.Average)
		if err != nil {
			return err
		}
		peak, err := optionalFloat(stat.Maximum)
		if err != nil {
			return err
		}
		if avg != nil {
			run.AvgHeartRate = intPtr(int(math.Round(*avg)))
		}
		if peak != nil {
			run.MaxHeartRate = intPtr(int(math.Round(*peak)))
		}
	case statStepCount:
		v, err := optionalFloat(stat.Sum)
		if err != nil || v == nil {
			return err
		}
		run.StepCount = intPtr(int(math.Round(*v)))
	case statRunningPower:
		return setAverage(&run.RunningPowerW, stat.Average)
	case statGroundContactTime:
		return setAverage(&run.GroundContactTimeMs, stat.Average)
	case statVerticalOscillation:
		return setAverage(&run.VerticalOscillationCm, stat.Average)
	case statStrideLength:
		return setAverage(&run.StrideLengthM, stat.Average)
	case statRunningSpeed:
		if err := setAverage(&run.RunningSpeedKmh, stat.Average); err != nil {
			return err
		}
		if run.RunningSpeedKmh != nil && stat.Unit == "mi/hr" {
			*run.RunningSpeedKmh *= models.MilesToKm
		}
	}
	return nil
}

func setAverage(dst **float64, value string) error {
	v, err := optionalFloat(value)
	if err != nil {
		return err
	}
	if v != nil {
		*dst = v
	}
	return nil
}

// attrFloat parses a numeric attribute; an absent attribute counts as 0.
func attrFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, ok := leadingFloat(s)
	if !ok {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// optionalFloat parses a numeric attribute that may be absent.
func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := leadingFloat(s)
	if !ok {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return floatPtr(v), nil
}
