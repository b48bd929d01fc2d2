package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*schedulerStore)(nil)

type schedulerStore struct {
	store *Store
}

const taskColumns = `id, name, interval_ms, enabled, next_run, last_run, last_success, last_error`

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, taskID)

	task, err := scanTask(row)
	switch {
	case isNoRows(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("scanning task %s: %w", taskID, err)
	}
	return task, nil
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_ms = excluded.interval_ms,
			enabled = excluded.enabled,
			next_run = excluded.next_run,
			last_run = excluded.last_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error
	`,
		task.ID, task.Name, task.Interval.Milliseconds(), boolToInt(task.Enabled),
		formatNullableTime(task.NextRun), formatNullableTime(task.LastRun),
		formatNullableTime(task.LastSuccess), nullString(task.LastError),
	)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

func (s *schedulerStore) AppendRun(ctx context.Context, run *domain.TaskRun) error {
	if run == nil || run.TaskID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_runs (task_id, started_at, ended_at, affected, detail, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.TaskID, formatTime(run.StartedAt), formatTime(run.EndedAt), run.Affected, run.Detail, run.Err)
	if err != nil {
		return fmt.Errorf("appending run of %s: %w", run.TaskID, err)
	}
	return nil
}

// RecentRuns orders by insertion sequence, so runs that share a start time
// still come back newest first.
func (s *schedulerStore) RecentRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT task_id, started_at, ended_at, affected, detail, error
		FROM task_runs
		WHERE task_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs of %s: %w", taskID, err)
	}
	defer rows.Close()

	var runs []domain.TaskRun
	for rows.Next() {
		var run domain.TaskRun
		var started, ended string
		if err := rows.Scan(&run.TaskID, &started, &ended, &run.Affected, &run.Detail, &run.Err); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.EndedAt = parseTime(ended)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *schedulerStore) TrimRuns(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_runs
		WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY seq DESC) AS n
				FROM task_runs
			) WHERE n > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("trimming task runs: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var intervalMS int64
	var enabled int
	var nextRun, lastRun, lastOK, lastErr sql.NullString
	if err := row.Scan(&task.ID, &task.Name, &intervalMS, &enabled,
		&nextRun, &lastRun, &lastOK, &lastErr); err != nil {
		return nil, err
	}

	task.Interval = time.Duration(intervalMS) * time.Millisecond
	task.Enabled = enabled != 0
	task.NextRun = parseNullableTime(nextRun)
	task.LastRun = parseNullableTime(lastRun)
	task.LastSuccess = parseNullableTime(lastOK)
	task.LastError = lastErr.String
	return &task, nil
}
