package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// ==================== Knowledge Store ====================

// knowledgeStore implements driven.KnowledgeStore and driven.MergeAuditLog.
type knowledgeStore struct {
	store *Store
}

var (
	_ driven.KnowledgeStore = (*knowledgeStore)(nil)
	_ driven.MergeAuditLog  = (*knowledgeStore)(nil)
)

const knowledgeColumns = `id, project_id, category, name, description, confidence,
	is_flagged, is_verified, extraction_method, evidence, created_at, updated_at`

// SaveItem stores or updates an item.
func (s *knowledgeStore) SaveItem(ctx context.Context, item *domain.KnowledgeItem) error {
	if item == nil || item.ID == "" {
		return domain.ErrInvalidInput
	}
	return upsertItem(ctx, s.store.db, item)
}

// GetItem retrieves an item by ID.
func (s *knowledgeStore) GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, notFound(err, "knowledge item")
	}
	return item, nil
}

// DeleteItem removes an item.
func (s *knowledgeStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM knowledge_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting knowledge item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListItems returns a project's items ordered by category then name.
func (s *knowledgeStore) ListItems(
	ctx context.Context,
	projectID string,
	filter driven.KnowledgeFilter,
) ([]domain.KnowledgeItem, error) {
	where := []string{"project_id = ?"}
	args := []any{projectID}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.FlaggedOnly {
		where = append(where, "is_flagged = 1")
	}
	if filter.MaxConfidence > 0 {
		where = append(where, "confidence <= ?")
		args = append(args, filter.MaxConfidence)
	}
	return s.query(ctx, strings.Join(where, " AND "), "category, name, id", args...)
}

// FindNearby returns items of the category whose name resembles name, closest first.
func (s *knowledgeStore) FindNearby(
	ctx context.Context,
	projectID string,
	category domain.Category,
	name string,
) ([]domain.KnowledgeItem, error) {
	same, err := s.query(ctx, "project_id = ? AND category = ?", "id", projectID, string(category))
	if err != nil {
		return nil, err
	}
	return domain.RankNearby(same, name), nil
}

// CountLowConfidence counts unverified automatic items below threshold.
func (s *knowledgeStore) CountLowConfidence(ctx context.Context, projectID string, threshold float64) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM knowledge_items
		WHERE project_id = ?
			AND is_verified = 0
			AND extraction_method NOT IN (?, ?)
			AND confidence < ?
	`, projectID, string(domain.ExtractionUserInput), string(domain.ExtractionUserCorrection), threshold).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting low confidence items: %w", err)
	}
	return n, nil
}

// AppendDecision stores one arbitration decision.
func (s *knowledgeStore) AppendDecision(ctx context.Context, entry domain.MergeAuditEntry) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO merge_audit (id, project_id, job_id, candidate_name, category,
			target_id, action, reason, confidence, fallback, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ProjectID, nullString(entry.JobID), entry.CandidateName, string(entry.Category),
		nullString(entry.TargetID), string(entry.Action), entry.Reason, entry.Confidence,
		boolToInt(entry.Fallback), formatTime(entry.DecidedAt))
	if err != nil {
		return fmt.Errorf("appending merge decision: %w", err)
	}
	return nil
}

// ListDecisions returns a project's decisions, newest first.
func (s *knowledgeStore) ListDecisions(ctx context.Context, projectID string, limit int) ([]domain.MergeAuditEntry, error) {
	q := `
		SELECT id, project_id, job_id, candidate_name, category, target_id,
			action, reason, confidence, fallback, decided_at
		FROM merge_audit WHERE project_id = ?
		ORDER BY decided_at DESC, rowid DESC`
	args := []any{projectID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying merge decisions: %w", err)
	}
	defer rows.Close()

	var entries []domain.MergeAuditEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.MergeAuditEntry
		var jobID, targetID sql.NullString
		var category, action, decidedAt string
		var fallback int
		if err := rows.Scan(&e.ID, &e.ProjectID, &jobID, &e.CandidateName, &category, &targetID,
			&action, &e.Reason, &e.Confidence, &fallback, &decidedAt); err != nil {
			return nil, fmt.Errorf("scanning merge decision: %w", err)
		}
		e.JobID = jobID.String
		e.TargetID = targetID.String
		e.Category = domain.Category(category)
		e.Action = domain.MergeAction(action)
		e.Fallback = fallback == 1
		e.DecidedAt = parseTime(decidedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merge decisions: %w", err)
	}
	return entries, nil
}

func (s *knowledgeStore) query(ctx context.Context, where, orderBy string, args ...any) ([]domain.KnowledgeItem, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_items WHERE `+where+` ORDER BY `+orderBy, args...)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge items: %w", err)
	}
	defer rows.Close()

	var items []domain.KnowledgeItem //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning knowledge item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge items: %w", err)
	}
	return items, nil
}

func upsertItem(ctx context.Context, q querier, item *domain.KnowledgeItem) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO knowledge_items (`+knowledgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			category = excluded.category,
			name = excluded.name,
			description = excluded.description,
			confidence = excluded.confidence,
			is_flagged = excluded.is_flagged,
			is_verified = excluded.is_verified,
			extraction_method = excluded.extraction_method,
			evidence = excluded.evidence,
			updated_at = excluded.updated_at
	`, item.ID, item.ProjectID, string(item.Category), item.Name, item.Description, item.Confidence,
		boolToInt(item.IsFlagged), boolToInt(item.IsVerified), string(item.ExtractionMethod),
		item.Evidence, formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving knowledge item %s: %w", item.ID, err)
	}
	return nil
}

func scanItem(row rowScanner) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	var category, method, createdAt, updatedAt string
	var flagged, verified int
	if err := row.Scan(&item.ID, &item.ProjectID, &category, &item.Name, &item.Description,
		&item.Confidence, &flagged, &verified, &method, &item.Evidence, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Category = domain.Category(category)
	item.ExtractionMethod = domain.ExtractionMethod(method)
	item.IsFlagged = flagged == 1
	item.IsVerified = verified == 1
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}

// ==================== Run Committer ====================

// runCommitter implements driven.RunCommitter with a single transaction.
type runCommitter struct {
	store *Store
}

var _ driven.RunCommitter = (*runCommitter)(nil)

// CommitRun writes knowledge, fingerprints and the job state atomically.
// The job write is guarded by commit.ExpectedState, so a job failed by the
// timeout sweep in the meantime rolls the whole run back. Updates are guarded
// the same way by commit.Base.
func (c *runCommitter) CommitRun(ctx context.Context, commit domain.RunCommit) error {
	return c.store.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkJobState(ctx, tx, commit.Job.ID, commit.ExpectedState, commit.Job.State); err != nil {
			return err
		}
		for i := range commit.Update {
			id := commit.Update[i].ID
			var updatedAt string
			err := tx.QueryRowContext(ctx, "SELECT updated_at FROM knowledge_items WHERE id = ?", id).Scan(&updatedAt)
			switch {
			case isNoRows(err):
				return fmt.Errorf("update item %s: %w", id, domain.ErrNotFound)
			case err != nil:
				return fmt.Errorf("checking knowledge item: %w", err)
			}
			if base, ok := commit.Base[id]; ok && updatedAt != formatTime(base) {
				return fmt.Errorf("update item %s: %w", id, domain.ErrKnowledgeChanged)
			}
		}
		for i := range commit.Create {
			if err := upsertItem(ctx, tx, &commit.Create[i]); err != nil {
				return err
			}
		}
		for i := range commit.Update {
			if err := upsertItem(ctx, tx, &commit.Update[i]); err != nil {
				return err
			}
		}
		if err := putFingerprints(ctx, tx, commit.Fingerprints); err != nil {
			return err
		}
		job := commit.Job
		return updateJob(ctx, tx, &job, commit.ExpectedState)
	})
}
