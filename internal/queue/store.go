package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"quenc/internal/config"
)

// Store manages task persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const taskColumns = "id, input, output, encoder, mode, target_score, max_crf, pool, vmaf_threads, vmaf_subsample, pix_fmt, preset, extra_params, scene_split_min, sample_every, status, error_message, result_crf, result_score, target_met, created_at, updated_at"

// Insert stores a new queued task. A task with the same id, unless
// already finished, is rejected.
func (s *Store) Insert(ctx context.Context, task *Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	existing, err := s.GetByID(ctx, task.ID)
	if err != nil && !errors.Is(err, ErrTaskNotFound) {
		return err
	}
	if existing != nil && !existing.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}

	now := time.Now().UTC()
	task.Status = StatusQueued
	task.CreatedAt = now
	task.UpdatedAt = now
	timestamp := now.Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tasks (`+taskColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Input,
		task.Output,
		task.Encoder,
		string(task.Mode),
		task.TargetScore,
		task.MaxCRF,
		task.Pool,
		task.VMAFThreads,
		task.VMAFSubsample,
		nullableString(task.PixelFormat),
		nullableString(task.Preset),
		nullableString(task.ExtraParams),
		task.SceneSplitMin,
		nullableString(task.SampleEvery),
		string(task.Status),
		nullableString(task.ErrorMessage),
		task.ResultCRF,
		task.ResultScore,
		boolToInt(task.TargetMet),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID fetches one task.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns tasks in creation order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// NextQueued returns the oldest queued task, or nil when the queue is
// drained.
func (s *Store) NextQueued(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE status = ? ORDER BY created_at, id LIMIT 1",
		string(StatusQueued))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued: %w", err)
	}
	return task, nil
}

// UpdateStatus transitions a task and records an optional cause.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(status), nullableString(errorMessage), timestamp, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res, id)
}

// RecordResult stores the outcome of a finished encode.
func (s *Store) RecordResult(ctx context.Context, id string, crf int, score float64, targetMet bool) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET result_crf = ?, result_score = ?, target_met = ?, updated_at = ? WHERE id = ?",
		crf, score, boolToInt(targetMet), timestamp, id)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return requireRow(res, id)
}

// Remove deletes a task that is not running.
func (s *Store) Remove(ctx context.Context, id string) error {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task.Status == StatusRunning {
		return fmt.Errorf("%w: %s", ErrTaskRunning, id)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	return nil
}

// MarkInterrupted fails every task left running by a previous daemon.
func (s *Store) MarkInterrupted(ctx context.Context, cause string) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, error_message = ?, updated_at = ? WHERE status = ?",
		string(StatusFailed), nullableString(cause), timestamp, string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts tasks per status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM tasks GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch Status(status) {
		case StatusQueued:
			stats.Queued = count
		case StatusRunning:
			stats.Running = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		case StatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id            string
		input         string
		output        string
		encoder       string
		mode          string
		targetScore   float64
		maxCRF        int
		pool          string
		vmafThreads   int
		vmafSubsample int
		pixFmt        sql.NullString
		preset        sql.NullString
		extraParams   sql.NullString
		sceneSplitMin float64
		sampleEvery   sql.NullString
		statusStr     string
		errorMessage  sql.NullString
		resultCRF     int
		resultScore   float64
		targetMet     sql.NullInt64
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&id,
		&input,
		&output,
		&encoder,
		&mode,
		&targetScore,
		&maxCRF,
		&pool,
		&vmafThreads,
		&vmafSubsample,
		&pixFmt,
		&preset,
		&extraParams,
		&sceneSplitMin,
		&sampleEvery,
		&statusStr,
		&errorMessage,
		&resultCRF,
		&resultScore,
		&targetMet,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:            id,
		Input:         input,
		Output:        output,
		Encoder:       encoder,
		Mode:          Mode(mode),
		TargetScore:   targetScore,
		MaxCRF:        maxCRF,
		Pool:          pool,
		VMAFThreads:   vmafThreads,
		VMAFSubsample: vmafSubsample,
		PixelFormat:   pixFmt.String,
		Preset:        preset.String,
		ExtraParams:   extraParams.String,
		SceneSplitMin: sceneSplitMin,
		SampleEvery:   sampleEvery.String,
		Status:        Status(statusStr),
		ErrorMessage:  errorMessage.String,
		ResultCRF:     resultCRF,
		ResultScore:   resultScore,
		TargetMet:     targetMet.Int64 != 0,
	}
	task.CreatedAt = parseTimestamp(createdRaw)
	task.UpdatedAt = parseTimestamp(updatedRaw)
	return task, nil
}

func parseTimestamp(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}
