package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"github.com/sstent/runlog/internal/models"
)

func runningSession(start time.Time) *fit.SessionMsg {
	session := fit.NewSessionMsg()
	session.Sport = fit.SportRunning
	session.StartTime = start
	session.TotalTimerTime = 1800000   // 1800 s
	session.TotalElapsedTime = 1860000 // 1860 s
	session.TotalDistance = 500000     // 5000 m
	session.AvgHeartRate = 152
	session.MaxHeartRate = 178
	return session
}

func TestRunFromSession(t *testing.T) {
	start := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)

	run := runFromSession(runningSession(start))
	require.NotNil(t, run)

	assert.Equal(t, models.SourceFIT, run.Source)
	assert.Equal(t, start, run.Date)
	assert.InDelta(t, 30.0, run.DurationMin, 1e-9)
	assert.InDelta(t, 5.0, run.DistanceKm, 1e-9)
	assert.InDelta(t, 6.0, run.PaceMinPerKm, 1e-9)
	require.NotNil(t, run.AvgHeartRate)
	assert.Equal(t, 152, *run.AvgHeartRate)
	require.NotNil(t, run.MaxHeartRate)
	assert.Equal(t, 178, *run.MaxHeartRate)
	assert.Nil(t, run.Calories)
	assert.Nil(t, run.ElevationGainM)
}

func TestRunFromSessionOptionalTotals(t *testing.T) {
	session := runningSession(time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC))
	session.TotalCalories = 412
	session.TotalAscent = 57

	run := runFromSession(session)
	require.NotNil(t, run)
	require.NotNil(t, run.Calories)
	assert.Equal(t, 412, *run.Calories)
	require.NotNil(t, run.ElevationGainM)
	assert.Equal(t, 57.0, *run.ElevationGainM)
}

func TestRunFromSessionWithoutTotals(t *testing.T) {
	start := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)

	session := runningSession(start)
	session.TotalDistance = 0xFFFFFFFF
	assert.Nil(t, runFromSession(session))

	session = runningSession(start)
	session.TotalDistance = 0
	assert.Nil(t, runFromSession(session))

	session = runningSession(start)
	session.TotalTimerTime = 0xFFFFFFFF
	assert.Nil(t, runFromSession(session))
}

func TestLapSplitsStayInsideSession(t *testing.T) {
	start := time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
	session := runningSession(start)

	lap := func(offset time.Duration, timerMs uint32) *fit.LapMsg {
		l := fit.NewLapMsg()
		l.StartTime = start.Add(offset)
		l.TotalTimerTime = timerMs
		return l
	}

	laps := []*fit.LapMsg{
		lap(0, 300000),
		lap(5*time.Minute, 330000),
		lap(-time.Hour, 300000),
		lap(2*time.Hour, 300000),
		nil,
	}

	splits := lapSplits(laps, session)
	require.Len(t, splits, 2)
	assert.InDelta(t, 5.0, splits[0].Duration, 1e-9)
	assert.Equal(t, "min", splits[0].DurationUnit)
	assert.Equal(t, "2024-06-01T07:30:00Z", splits[0].Date)
	assert.InDelta(t, 5.5, splits[1].Duration, 1e-9)
}

func TestFITParserRejectsGarbage(t *testing.T) {
	_, err := NewFITParser(discardLogger).Parse(strings.NewReader("not a fit file"))
	assert.Error(t, err)
}
