package parser

import (
	"fmt"
	"html"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sstent/runlog/internal/models"
)

type scanState int

const (
	stateIdle scanState = iota
	stateInWorkout
)

// WorkoutScanner groups a line sequence into complete <Workout> element
// buffers. It does no I/O, so it can be driven from any line source.
type WorkoutScanner struct {
	state scanState
	buf   strings.Builder
}

var selfClosingWorkout = regexp.MustCompile(`<Workout\s[^>]*/>`)

func isWorkoutOpen(line string) bool {
	return strings.Contains(line, "<Workout ") || strings.Contains(line, "<Workout>")
}

// Feed consumes one line and returns the buffered workout text once its
// closing tag has been seen.
func (s *WorkoutScanner) Feed(line string) (string, bool) {
	if isWorkoutOpen(line) {
		// An unterminated workout is abandoned when the next one opens.
		s.state = stateInWorkout
		s.buf.Reset()
		s.buf.WriteString(line)
		if strings.Contains(line, "</Workout>") || selfClosingWorkout.MatchString(line) {
			return s.flush(), true
		}
		return "", false
	}

	if s.state != stateInWorkout {
		return "", false
	}

	s.buf.WriteByte('\n')
	s.buf.WriteString(line)
	if strings.Contains(line, "</Workout>") {
		return s.flush(), true
	}
	return "", false
}

// InWorkout reports whether a workout is open but not yet closed.
func (s *WorkoutScanner) InWorkout() bool {
	return s.state == stateInWorkout
}

func (s *WorkoutScanner) flush() string {
	text := s.buf.String()
	s.buf.Reset()
	s.state = stateIdle
	return text
}

var (
	workoutTagPattern   = regexp.MustCompile(`<Workout(?:\s[^>]*)?>`)
	statisticTagPattern = regexp.MustCompile(`<WorkoutStatistics\s[^>]*>`)
	metadataTagPattern  = regexp.MustCompile(`<MetadataEntry\s[^>]*>`)
	eventTagPattern     = regexp.MustCompile(`<WorkoutEvent\s[^>]*>`)
	attributePattern    = regexp.MustCompile(`([A-Za-z_][\w.:-]*)\s*=\s*"([^"]*)"`)

	// Elements that carry their own statistics, events or metadata.
	nestedEmptyPattern = regexp.MustCompile(`<(?:WorkoutActivity|WorkoutRoute)\b[^>]*/>`)
	nestedBlockPattern = regexp.MustCompile(`(?s)<WorkoutActivity\b.*?</WorkoutActivity>|<WorkoutRoute\b.*?</WorkoutRoute>`)
)

// directChildren drops nested activity and route elements so only the
// workout's own children are matched.
func directChildren(buffer string) string {
	buffer = nestedEmptyPattern.ReplaceAllString(buffer, "")
	return nestedBlockPattern.ReplaceAllString(buffer, "")
}

// tagAttributes returns the attributes of one start tag. The first
// occurrence of a repeated name wins.
func tagAttributes(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attributePattern.FindAllStringSubmatch(tag, -1) {
		if _, seen := attrs[m[1]]; !seen {
			attrs[m[1]] = html.UnescapeString(m[2])
		}
	}
	return attrs
}

// extractWorkout pulls the workout fields out of one buffered <Workout>
// element using pattern matching instead of an XML decoder.
func extractWorkout(buffer string) (healthWorkout, error) {
	tag := workoutTagPattern.FindString(buffer)
	if tag == "" {
		return healthWorkout{}, fmt.Errorf("no Workout start tag")
	}

	attrs := tagAttributes(tag)
	buffer = directChildren(buffer)
	w := healthWorkout{
		ActivityType:  attrs["workoutActivityType"],
		Duration:      attrs["duration"],
		DurationUnit:  attrs["durationUnit"],
		SourceName:    attrs["sourceName"],
		SourceVersion: attrs["sourceVersion"],
		Device:        attrs["device"],
		CreationDate:  attrs["creationDate"],
		StartDate:     attrs["startDate"],
		EndDate:       attrs["endDate"],
	}

	for _, t := range statisticTagPattern.FindAllString(buffer, -1) {
		a := tagAttributes(t)
		w.Statistics = append(w.Statistics, healthStatistic{
			Type:      a["type"],
			StartDate: a["startDate"],
			EndDate:   a["endDate"],
			Average:   a["average"],
			Minimum:   a["minimum"],
			Maximum:   a["maximum"],
			Sum:       a["sum"],
			Unit:      a["unit"],
		})
	}

	for _, t := range metadataTagPattern.FindAllString(buffer, -1) {
		a := tagAttributes(t)
		w.Metadata = append(w.Metadata, healthMetadata{Key: a["key"], Value: a["value"]})
	}

	for _, t := range eventTagPattern.FindAllString(buffer, -1) {
		a := tagAttributes(t)
		w.Events = append(w.Events, healthEvent{
			Type:         a["type"],
			Date:         a["date"],
			Duration:     a["duration"],
			DurationUnit: a["durationUnit"],
		})
	}

	return w, nil
}

// AppleHealthStreamParser walks an export line by line and never holds more
// than one workout in memory.
type AppleHealthStreamParser struct {
	logger *slog.Logger
}

func NewAppleHealthStreamParser(logger *slog.Logger) *AppleHealthStreamParser {
	return &AppleHealthStreamParser{logger: loggerOrDefault(logger)}
}

func (p *AppleHealthStreamParser) Parse(r io.Reader) ([]models.Run, error) {
	var (
		scanner WorkoutScanner
		runs    []models.Run
		index   int
	)

	lines := newLineScanner(r)
	for lines.Scan() {
		buffer, ok := scanner.Feed(lines.Text())
		if !ok {
			continue
		}
		index++

		workout, err := extractWorkout(buffer)
		if err != nil {
			p.logger.Warn("skipping workout", "error", &MalformedRecordError{Index: index, Err: err})
			continue
		}
		run, err := workout.toRun(index)
		if err != nil {
			p.logger.Warn("skipping workout", "error", err)
			continue
		}
		if run != nil {
			runs = append(runs, *run)
		}
	}
	if err := lines.Err(); err != nil {
		return runs, fmt.Errorf("read health export: %w", err)
	}
	if scanner.InWorkout() {
		p.logger.Warn("export ended inside an unterminated workout", "workouts", index)
	}

	return runs, nil
}
