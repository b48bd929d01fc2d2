package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
//
// Writes are compare-and-set on the state column. The partial unique index
// idx_jobs_active_project enforces one non-terminal job per project even
// across processes sharing the database file.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `id, project_id, type, state, options, document_ids,
	results_summary, error_details, created_at, updated_at`

// CreateJob inserts a new job unless the project already has an active one.
func (s *jobStore) CreateJob(ctx context.Context, job *domain.ProcessingJob) error {
	if job == nil || job.ID == "" || job.ProjectID == "" {
		return domain.ErrInvalidInput
	}
	cols, err := encodeJob(job)
	if err != nil {
		return err
	}

	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM jobs WHERE id = ?", job.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking job: %w", err)
		}
		if exists > 0 {
			return domain.ErrAlreadyExists
		}

		var activeID string
		var activeState domain.JobState
		err := tx.QueryRowContext(ctx, `
			SELECT id, state FROM jobs
			WHERE project_id = ? AND state IN (`+activeStatesSQL()+`)
			LIMIT 1
		`, job.ProjectID).Scan(&activeID, &activeState)
		switch {
		case err == nil:
			return fmt.Errorf("%w: job %s is %s", domain.ErrJobAlreadyActive, activeID, activeState)
		case !isNoRows(err):
			return fmt.Errorf("checking active jobs: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO jobs (`+jobColumns+`, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
				(SELECT COALESCE(MAX(seq), 0) + 1 FROM jobs))
		`, job.ID, job.ProjectID, string(job.Type), string(job.State),
			cols.options, cols.documentIDs, cols.summary, nullString(job.ErrorDetails),
			formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project %s", domain.ErrJobAlreadyActive, job.ProjectID)
		}
		if err != nil {
			return fmt.Errorf("inserting job: %w", err)
		}
		return nil
	})
}

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.ProcessingJob, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, notFound(err, "job")
	}
	return job, nil
}

// UpdateJob replaces the stored job if its state still equals expected.
func (s *jobStore) UpdateJob(ctx context.Context, job *domain.ProcessingJob, expected domain.JobState) error {
	if job == nil {
		return domain.ErrInvalidInput
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		return updateJob(ctx, tx, job, expected)
	})
}

// TransitionJob changes only the state column if it still equals expected.
func (s *jobStore) TransitionJob(ctx context.Context, id string, expected, to domain.JobState) error {
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkJobState(ctx, tx, id, expected, to); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE jobs SET state = ? WHERE id = ? AND state = ?", string(to), id, string(expected))
		if err != nil {
			return fmt.Errorf("transitioning job: %w", err)
		}
		return expectOneRow(res, expected)
	})
}

// LatestJob returns the most recently created job of a project, or nil.
func (s *jobStore) LatestJob(ctx context.Context, projectID string) (*domain.ProcessingJob, error) {
	jobs, err := s.query(ctx, "WHERE project_id = ?", 1, projectID)
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return &jobs[0], nil
}

// LastCompletedJob returns the most recent done job of a project, or nil.
func (s *jobStore) LastCompletedJob(ctx context.Context, projectID string) (*domain.ProcessingJob, error) {
	jobs, err := s.query(ctx, "WHERE project_id = ? AND state = ?", 1, projectID, string(domain.JobStateDone))
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return &jobs[0], nil
}

// ListActiveJobs returns all non-terminal jobs across projects.
func (s *jobStore) ListActiveJobs(ctx context.Context) ([]domain.ProcessingJob, error) {
	return s.query(ctx, "WHERE state IN ("+activeStatesSQL()+")", 0)
}

// ListJobs returns a project's jobs, newest first.
func (s *jobStore) ListJobs(ctx context.Context, projectID string, limit int) ([]domain.ProcessingJob, error) {
	return s.query(ctx, "WHERE project_id = ?", limit, projectID)
}

// CountJobs counts a project's jobs in the given state.
func (s *jobStore) CountJobs(ctx context.Context, projectID string, state domain.JobState) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM jobs WHERE project_id = ? AND state = ?",
		projectID, string(state)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting jobs: %w", err)
	}
	return n, nil
}

// query lists jobs newest first. A limit of zero means no limit.
func (s *jobStore) query(ctx context.Context, where string, limit int, args ...any) ([]domain.ProcessingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs ` + where + ` ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ProcessingJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// updateJob writes job over the stored row guarded by expected.
func updateJob(ctx context.Context, q querier, job *domain.ProcessingJob, expected domain.JobState) error {
	if err := checkJobState(ctx, q, job.ID, expected, job.State); err != nil {
		return err
	}
	cols, err := encodeJob(job)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE jobs SET
			type = ?, state = ?, options = ?, document_ids = ?,
			results_summary = ?, error_details = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, string(job.Type), string(job.State), cols.options, cols.documentIDs,
		cols.summary, nullString(job.ErrorDetails), formatTime(job.UpdatedAt),
		job.ID, string(expected))
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	return expectOneRow(res, expected)
}

// checkJobState validates a compare-and-set write against the stored row.
func checkJobState(ctx context.Context, q querier, id string, expected, to domain.JobState) error {
	var stored domain.JobState
	err := q.QueryRowContext(ctx, "SELECT state FROM jobs WHERE id = ?", id).Scan(&stored)
	if err != nil {
		return notFound(err, "job")
	}
	if stored != expected {
		return fmt.Errorf("%w: job is %s, expected %s", domain.ErrStateConflict, stored, expected)
	}
	if to != expected && !expected.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, to)
	}
	return nil
}

func expectOneRow(res sql.Result, expected domain.JobState) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: job left %s", domain.ErrStateConflict, expected)
	}
	return nil
}

func activeStatesSQL() string {
	states := domain.ActiveJobStates()
	quoted := make([]string, len(states))
	for i, st := range states {
		quoted[i] = "'" + string(st) + "'"
	}
	return strings.Join(quoted, ", ")
}

type jobColumnsJSON struct {
	options     string
	documentIDs string
	summary     any
}

func encodeJob(job *domain.ProcessingJob) (jobColumnsJSON, error) {
	var cols jobColumnsJSON
	options := job.Options
	if options == nil {
		options = map[string]string{}
	}
	b, err := json.Marshal(options)
	if err != nil {
		return cols, fmt.Errorf("marshalling options: %w", err)
	}
	cols.options = string(b)

	ids := job.DocumentIDs
	if ids == nil {
		ids = []string{}
	}
	if b, err = json.Marshal(ids); err != nil {
		return cols, fmt.Errorf("marshalling document ids: %w", err)
	}
	cols.documentIDs = string(b)

	if job.ResultsSummary != nil {
		if b, err = json.Marshal(job.ResultsSummary); err != nil {
			return cols, fmt.Errorf("marshalling results summary: %w", err)
		}
		cols.summary = string(b)
	}
	return cols, nil
}

func scanJob(row rowScanner) (*domain.ProcessingJob, error) {
	var job domain.ProcessingJob
	var jobType, state, optionsJSON, idsJSON, createdAt, updatedAt string
	var summaryJSON, errorDetails sql.NullString
	if err := row.Scan(&job.ID, &job.ProjectID, &jobType, &state, &optionsJSON, &idsJSON,
		&summaryJSON, &errorDetails, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.Type = domain.JobType(jobType)
	job.State = domain.JobState(state)
	job.ErrorDetails = errorDetails.String
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)

	if err := json.Unmarshal([]byte(optionsJSON), &job.Options); err != nil {
		return nil, fmt.Errorf("unmarshalling options: %w", err)
	}
	if len(job.Options) == 0 {
		job.Options = nil
	}
	if err := json.Unmarshal([]byte(idsJSON), &job.DocumentIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling document ids: %w", err)
	}
	if len(job.DocumentIDs) == 0 {
		job.DocumentIDs = nil
	}
	if summaryJSON.Valid {
		var summary domain.JobSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("unmarshalling results summary: %w", err)
		}
		job.ResultsSummary = &summary
	}
	return &job, nil
}
