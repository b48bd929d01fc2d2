package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// changeStore implements driven.EnhancementStore and driven.ChangeStore.
type changeStore struct {
	store *Store
}

var (
	_ driven.EnhancementStore = (*changeStore)(nil)
	_ driven.ChangeStore      = (*changeStore)(nil)
)

const enhancementColumns = `id, document_id, project_id, status, original_text,
	enhanced_text, error_details, created_at, updated_at`

const changeColumns = `id, enhancement_id, type, original_text, enhanced_text,
	original_start, original_end, enhanced_start, enhanced_end, confidence, decision, created_at`

// SaveEnhancement stores or updates an enhancement.
func (s *changeStore) SaveEnhancement(ctx context.Context, e *domain.Enhancement) error {
	if e == nil || e.ID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO enhancements (`+enhancementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			project_id = excluded.project_id,
			status = excluded.status,
			original_text = excluded.original_text,
			enhanced_text = excluded.enhanced_text,
			error_details = excluded.error_details,
			updated_at = excluded.updated_at
	`, e.ID, e.DocumentID, e.ProjectID, string(e.Status), e.OriginalText, e.EnhancedText,
		nullString(e.ErrorDetails), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving enhancement: %w", err)
	}
	return nil
}

// GetEnhancement retrieves an enhancement by ID.
func (s *changeStore) GetEnhancement(ctx context.Context, id string) (*domain.Enhancement, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+enhancementColumns+` FROM enhancements WHERE id = ?`, id)
	e, err := scanEnhancement(row)
	if err != nil {
		return nil, notFound(err, "enhancement")
	}
	return e, nil
}

// UpdateEnhancement replaces the enhancement if its status still equals expected.
func (s *changeStore) UpdateEnhancement(
	ctx context.Context,
	e *domain.Enhancement,
	expected domain.EnhancementStatus,
) error {
	if e == nil {
		return domain.ErrInvalidInput
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		return updateEnhancement(ctx, tx, e, expected)
	})
}

// CompleteEnhancement stores changes and the finished enhancement in one
// transaction.
func (s *changeStore) CompleteEnhancement(ctx context.Context, e *domain.Enhancement, changes []domain.ChangeRecord) error {
	if e == nil {
		return domain.ErrInvalidInput
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range changes {
			if c.EnhancementID != e.ID {
				return fmt.Errorf("change %s belongs to %s: %w", c.ID, c.EnhancementID, domain.ErrInvalidInput)
			}
		}
		if err := updateEnhancement(ctx, tx, e, domain.EnhancementProcessing); err != nil {
			return err
		}
		return insertChanges(ctx, tx, changes)
	})
}

func updateEnhancement(ctx context.Context, tx *sql.Tx, e *domain.Enhancement, expected domain.EnhancementStatus) error {
	if err := checkEnhancementStatus(ctx, tx, e.ID, expected); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE enhancements SET
			document_id = ?, project_id = ?, status = ?, original_text = ?,
			enhanced_text = ?, error_details = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, e.DocumentID, e.ProjectID, string(e.Status), e.OriginalText, e.EnhancedText,
		nullString(e.ErrorDetails), formatTime(e.UpdatedAt), e.ID, string(expected))
	if err != nil {
		return fmt.Errorf("updating enhancement: %w", err)
	}
	return nil
}

// TransitionEnhancement changes only the status if it still equals expected.
func (s *changeStore) TransitionEnhancement(
	ctx context.Context,
	id string,
	expected, to domain.EnhancementStatus,
) error {
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		if err := checkEnhancementStatus(ctx, tx, id, expected); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE enhancements SET status = ? WHERE id = ? AND status = ?",
			string(to), id, string(expected))
		if err != nil {
			return fmt.Errorf("transitioning enhancement: %w", err)
		}
		return nil
	})
}

// ListActiveEnhancements returns enhancements still processing.
func (s *changeStore) ListActiveEnhancements(ctx context.Context) ([]domain.Enhancement, error) {
	return s.queryEnhancements(ctx, "status NOT IN (?, ?)",
		string(domain.EnhancementCompleted), string(domain.EnhancementFailed))
}

// ListEnhancements returns a document's enhancements, newest first.
func (s *changeStore) ListEnhancements(ctx context.Context, documentID string) ([]domain.Enhancement, error) {
	return s.queryEnhancements(ctx, "document_id = ?", documentID)
}

// SaveChanges stores change records in one transaction.
func (s *changeStore) SaveChanges(ctx context.Context, changes []domain.ChangeRecord) error {
	if len(changes) == 0 {
		return nil
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		return insertChanges(ctx, tx, changes)
	})
}

func insertChanges(ctx context.Context, tx *sql.Tx, changes []domain.ChangeRecord) error {
	for _, c := range changes {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM enhancements WHERE id = ?",
			c.EnhancementID).Scan(&exists); err != nil {
			return fmt.Errorf("checking enhancement: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("change %s: enhancement %s: %w", c.ID, c.EnhancementID, domain.ErrNotFound)
		}
		decision := c.Decision
		if decision == "" {
			decision = domain.DecisionPending
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO change_records (`+changeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				original_text = excluded.original_text,
				enhanced_text = excluded.enhanced_text,
				original_start = excluded.original_start,
				original_end = excluded.original_end,
				enhanced_start = excluded.enhanced_start,
				enhanced_end = excluded.enhanced_end,
				confidence = excluded.confidence,
				decision = excluded.decision
		`, c.ID, c.EnhancementID, string(c.Type), c.OriginalText, c.EnhancedText,
			c.Original.Start, c.Original.End, c.Enhanced.Start, c.Enhanced.End,
			c.Confidence, string(decision), formatTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("saving change %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetChange retrieves a record by ID.
func (s *changeStore) GetChange(ctx context.Context, id string) (*domain.ChangeRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+changeColumns+` FROM change_records WHERE id = ?`, id)
	c, err := scanChange(row)
	if err != nil {
		return nil, notFound(err, "change")
	}
	return c, nil
}

// ListChanges returns an enhancement's records ordered by enhanced start.
func (s *changeStore) ListChanges(ctx context.Context, enhancementID string) ([]domain.ChangeRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+changeColumns+` FROM change_records
		WHERE enhancement_id = ?
		ORDER BY enhanced_start, id
	`, enhancementID)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.ChangeRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning change: %w", err)
		}
		changes = append(changes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating changes: %w", err)
	}
	return changes, nil
}

// SetDecision records the reviewer's decision on a change.
func (s *changeStore) SetDecision(ctx context.Context, id string, decision domain.UserDecision) error {
	if !decision.IsValid() {
		return fmt.Errorf("%w: decision %q", domain.ErrInvalidInput, decision)
	}
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE change_records SET decision = ? WHERE id = ?", string(decision), id)
	if err != nil {
		return fmt.Errorf("setting decision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *changeStore) queryEnhancements(ctx context.Context, where string, args ...any) ([]domain.Enhancement, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+enhancementColumns+` FROM enhancements WHERE `+where+
			` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying enhancements: %w", err)
	}
	defer rows.Close()

	var out []domain.Enhancement //nolint:prealloc // size unknown from query
	for rows.Next() {
		e, err := scanEnhancement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning enhancement: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enhancements: %w", err)
	}
	return out, nil
}

func checkEnhancementStatus(ctx context.Context, q querier, id string, expected domain.EnhancementStatus) error {
	var stored domain.EnhancementStatus
	if err := q.QueryRowContext(ctx, "SELECT status FROM enhancements WHERE id = ?", id).Scan(&stored); err != nil {
		return notFound(err, "enhancement")
	}
	if stored != expected {
		return fmt.Errorf("%w: enhancement is %s, expected %s", domain.ErrStateConflict, stored, expected)
	}
	return nil
}

func scanEnhancement(row rowScanner) (*domain.Enhancement, error) {
	var e domain.Enhancement
	var status, createdAt, updatedAt string
	var errorDetails sql.NullString
	if err := row.Scan(&e.ID, &e.DocumentID, &e.ProjectID, &status, &e.OriginalText,
		&e.EnhancedText, &errorDetails, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.EnhancementStatus(status)
	e.ErrorDetails = errorDetails.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func scanChange(row rowScanner) (*domain.ChangeRecord, error) {
	var c domain.ChangeRecord
	var changeType, decision, createdAt string
	if err := row.Scan(&c.ID, &c.EnhancementID, &changeType, &c.OriginalText, &c.EnhancedText,
		&c.Original.Start, &c.Original.End, &c.Enhanced.Start, &c.Enhanced.End,
		&c.Confidence, &decision, &createdAt); err != nil {
		return nil, err
	}
	c.Type = domain.ChangeType(changeType)
	c.Decision = domain.UserDecision(decision)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
