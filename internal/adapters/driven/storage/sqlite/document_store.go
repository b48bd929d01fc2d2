package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, project_id, title, uri, content, created_at, updated_at`

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ProjectID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			title = excluded.title,
			uri = excluded.uri,
			content = excluded.content,
			updated_at = excluded.updated_at
	`, doc.ID, doc.ProjectID, doc.Title, doc.URI, doc.Content,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return doc, nil
}

// GetDocumentByURI retrieves a document by its import location.
func (s *documentStore) GetDocumentByURI(ctx context.Context, projectID, uri string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE project_id = ? AND uri = ?
		ORDER BY created_at, id
		LIMIT 1
	`, projectID, uri)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return doc, nil
}

// DeleteDocument removes a document and its fingerprint.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE document_id = ?", id); err != nil {
		return fmt.Errorf("deleting fingerprint: %w", err)
	}
	return nil
}

// ListDocuments returns a project's documents ordered by creation time, then ID.
func (s *documentStore) ListDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE project_id = ?
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ListProjects returns the distinct project IDs that have documents.
func (s *documentStore) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT DISTINCT project_id FROM documents ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.ProjectID, &doc.Title, &doc.URI, &doc.Content,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

// ==================== Fingerprint Store ====================

// fingerprintStore implements driven.FingerprintStore.
type fingerprintStore struct {
	store *Store
}

var _ driven.FingerprintStore = (*fingerprintStore)(nil)

// GetFingerprint returns a document's fingerprint, or nil if never processed.
func (s *fingerprintStore) GetFingerprint(ctx context.Context, documentID string) (*domain.Fingerprint, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, project_id, hash, processed_at, job_id
		FROM fingerprints WHERE document_id = ?
	`, documentID)
	fp, err := scanFingerprint(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning fingerprint: %w", err)
	}
	return fp, nil
}

// ListFingerprints returns every fingerprint of a project keyed by document ID.
func (s *fingerprintStore) ListFingerprints(ctx context.Context, projectID string) (map[string]domain.Fingerprint, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, project_id, hash, processed_at, job_id
		FROM fingerprints WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Fingerprint)
	for rows.Next() {
		fp, err := scanFingerprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		out[fp.DocumentID] = *fp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprints: %w", err)
	}
	return out, nil
}

// SaveFingerprints upserts fingerprints in one transaction.
func (s *fingerprintStore) SaveFingerprints(ctx context.Context, fps []domain.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		return putFingerprints(ctx, tx, fps)
	})
}

func putFingerprints(ctx context.Context, q querier, fps []domain.Fingerprint) error {
	for _, fp := range fps {
		_, err := q.ExecContext(ctx, `
			INSERT INTO fingerprints (document_id, project_id, hash, processed_at, job_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(document_id) DO UPDATE SET
				project_id = excluded.project_id,
				hash = excluded.hash,
				processed_at = excluded.processed_at,
				job_id = excluded.job_id
		`, fp.DocumentID, fp.ProjectID, fp.Hash, formatTime(fp.ProcessedAt), nullString(fp.JobID))
		if err != nil {
			return fmt.Errorf("saving fingerprint %s: %w", fp.DocumentID, err)
		}
	}
	return nil
}

func scanFingerprint(row rowScanner) (*domain.Fingerprint, error) {
	var fp domain.Fingerprint
	var processedAt string
	var jobID sql.NullString
	if err := row.Scan(&fp.DocumentID, &fp.ProjectID, &fp.Hash, &processedAt, &jobID); err != nil {
		return nil, err
	}
	fp.ProcessedAt = parseTime(processedAt)
	fp.JobID = jobID.String
	return &fp, nil
}
