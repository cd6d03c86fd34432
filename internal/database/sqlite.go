// internal/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"

	"github.com/sstent/runlog/internal/models"
)

// timeLayout keeps stored timestamps lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000Z"

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteDB struct {
	db *sql.DB
}

var _ Database = (*SQLiteDB)(nil)

func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	sqlite := &SQLiteDB{db: db}

	if err := sqlite.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	return sqlite, nil
}

// migrate applies the embedded schema migrations. The migrate instance is not
// closed because that would close the shared *sql.DB as well.
func (s *SQLiteDB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

const runColumns = `
	id, date, distance, duration, pace,
	avg_heart_rate, max_heart_rate, elevation_gain, calories, notes, source,
	step_count, avg_running_power, avg_ground_contact_time, avg_running_speed,
	avg_vertical_oscillation, avg_stride_length, workout_name, indoor_workout,
	source_name, splits, gpx_data, raw_data, created_at`

func (s *SQLiteDB) CreateRun(ctx context.Context, run *models.Run) (int64, error) {
	query := `
	INSERT INTO runs (
		date, distance, duration, pace,
		avg_heart_rate, max_heart_rate, elevation_gain, calories, notes, source,
		step_count, avg_running_power, avg_ground_contact_time, avg_running_speed,
		avg_vertical_oscillation, avg_stride_length, workout_name, indoor_workout,
		source_name, splits, gpx_data, raw_data, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	splits, err := jsonColumn(run.Splits, len(run.Splits) == 0)
	if err != nil {
		return 0, fmt.Errorf("encode splits: %w", err)
	}
	track, err := jsonColumn(run.TrackPoints, len(run.TrackPoints) == 0)
	if err != nil {
		return 0, fmt.Errorf("encode track: %w", err)
	}
	var raw interface{}
	if len(run.RawData) > 0 {
		raw = string(run.RawData)
	}

	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query,
		formatTime(run.Date), run.DistanceKm, run.DurationMin, run.PaceMinPerKm,
		nullInt(run.AvgHeartRate), nullInt(run.MaxHeartRate), nullFloat(run.ElevationGainM),
		nullInt(run.Calories), nullString(run.Notes), string(run.Source),
		nullInt(run.StepCount), nullFloat(run.RunningPowerW), nullFloat(run.GroundContactTimeMs),
		nullFloat(run.RunningSpeedKmh), nullFloat(run.VerticalOscillationCm), nullFloat(run.StrideLengthM),
		nullString(run.WorkoutName), nullBool(run.Indoor), nullString(run.SourceName),
		splits, track, raw, formatTime(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s %.3f km %.2f min", ErrDuplicateRun, formatTime(run.Date), run.DistanceKm, run.DurationMin)
		}
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	run.CreatedAt = createdAt
	return id, nil
}

func (s *SQLiteDB) RunExists(ctx context.Context, date time.Time, distanceKm, durationMin float64) (bool, error) {
	query := `SELECT COUNT(*) FROM runs WHERE date = ? AND distance = ? AND duration = ?`
	var count int
	err := s.db.QueryRowContext(ctx, query, formatTime(date), distanceKm, durationMin).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLiteDB) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, err
	}
	return run, nil
}

var sortColumns = map[string]string{
	"date":       "date",
	"distance":   "distance",
	"duration":   "duration",
	"pace":       "pace",
	"created_at": "created_at",
}

func (s *SQLiteDB) ListRuns(ctx context.Context, filters RunFilters) ([]models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`

	var args []interface{}
	var conditions []string

	if filters.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, string(filters.Source))
	}
	if filters.DateFrom != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, formatTime(*filters.DateFrom))
	}
	if filters.DateTo != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, formatTime(*filters.DateTo))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := sortColumns[filters.SortBy]
	if !ok {
		orderBy = "date"
	}
	order := "DESC"
	if filters.SortOrder == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", orderBy, order, order)

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)

		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

func (s *SQLiteDB) RecordImport(ctx context.Context, rec *ImportRecord) error {
	query := `
	INSERT INTO imports (
		id, filename, file_type, status, imported, skipped, total,
		error, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Filename, nullString(rec.FileType), rec.Status,
		rec.Imported, rec.Skipped, rec.Total, nullString(rec.Error),
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
	)
	return err
}

func (s *SQLiteDB) ListImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	query := `
	SELECT id, filename, file_type, status, imported, skipped, total,
	       error, started_at, finished_at
	FROM imports
	ORDER BY started_at DESC`

	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ImportRecord
	for rows.Next() {
		var (
			rec                   ImportRecord
			fileType, errText     sql.NullString
			startedAt, finishedAt string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Filename, &fileType, &rec.Status,
			&rec.Imported, &rec.Skipped, &rec.Total,
			&errText, &startedAt, &finishedAt,
		); err != nil {
			return nil, err
		}
		rec.FileType = fileType.String
		rec.Error = errText.String
		if rec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// NewSQLiteDBFromDB wraps an existing sql.DB connection and migrates it.
func NewSQLiteDBFromDB(db *sql.DB) (*SQLiteDB, error) {
	sqlite := &SQLiteDB{db: db}
	if err := sqlite.migrate(); err != nil {
		return nil, err
	}
	return sqlite, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run                                      models.Run
		date, createdAt, source                  string
		avgHR, maxHR, calories, steps, indoor    sql.NullInt64
		elevation, power, gct, speed, vo, stride sql.NullFloat64
		notes, workoutName, sourceName           sql.NullString
		splits, track, raw                       sql.NullString
	)

	err := row.Scan(
		&run.ID, &date, &run.DistanceKm, &run.DurationMin, &run.PaceMinPerKm,
		&avgHR, &maxHR, &elevation, &calories, &notes, &source,
		&steps, &power, &gct, &speed,
		&vo, &stride, &workoutName, &indoor,
		&sourceName, &splits, &track, &raw, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if run.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	run.Source = models.Source(source)
	run.AvgHeartRate = intValue(avgHR)
	run.MaxHeartRate = intValue(maxHR)
	run.ElevationGainM = floatValue(elevation)
	run.Calories = intValue(calories)
	run.Notes = notes.String
	run.StepCount = intValue(steps)
	run.RunningPowerW = floatValue(power)
	run.GroundContactTimeMs = floatValue(gct)
	run.RunningSpeedKmh = floatValue(speed)
	run.VerticalOscillationCm = floatValue(vo)
	run.StrideLengthM = floatValue(stride)
	run.WorkoutName = workoutName.String
	if indoor.Valid {
		v := indoor.Int64 != 0
		run.Indoor = &v
	}
	run.SourceName = sourceName.String

	if splits.Valid && splits.String != "" {
		if err := json.Unmarshal([]byte(splits.String), &run.Splits); err != nil {
			return nil, fmt.Errorf("decode splits of run %d: %w", run.ID, err)
		}
	}
	if track.Valid && track.String != "" {
		if err := json.Unmarshal([]byte(track.String), &run.TrackPoints); err != nil {
			return nil, fmt.Errorf("decode track of run %d: %w", run.ID, err)
		}
	}
	if raw.Valid && raw.String != "" {
		run.RawData = json.RawMessage(raw.String)
	}

	return &run, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func jsonColumn(v interface{}, empty bool) (interface{}, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullBool(v *bool) interface{} {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func intValue(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatValue(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
