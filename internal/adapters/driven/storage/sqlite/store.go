package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
	"github.com/custodia-labs/lorekeeper/internal/logger"
)

const dbFileName = "lorekeeper.db"

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// Store owns the database handle. The per-port stores it hands out share it.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens dataDir/lorekeeper.db, creating the directory and applying
// pending migrations. An empty dataDir means ~/.lorekeeper/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lorekeeper", "data")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, dbFileName)
	q := url.Values{"_pragma": pragmas}
	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Path is the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) DocumentStore() driven.DocumentStore       { return &documentStore{store: s} }
func (s *Store) FingerprintStore() driven.FingerprintStore { return &fingerprintStore{store: s} }
func (s *Store) JobStore() driven.JobStore                 { return &jobStore{store: s} }
func (s *Store) KnowledgeStore() driven.KnowledgeStore     { return &knowledgeStore{store: s} }
func (s *Store) MergeAuditLog() driven.MergeAuditLog       { return &knowledgeStore{store: s} }
func (s *Store) EnhancementStore() driven.EnhancementStore { return &changeStore{store: s} }
func (s *Store) ChangeStore() driven.ChangeStore           { return &changeStore{store: s} }
func (s *Store) SchedulerStore() driven.SchedulerStore     { return &schedulerStore{store: s} }

// RunCommitter writes a finished run's knowledge, audit entries, fingerprints
// and job state in one transaction.
func (s *Store) RunCommitter() driven.RunCommitter { return &runCommitter{store: s} }

// migrate applies each pending migration in its own transaction together
// with the schema_migrations row that records it.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	pending, err := migrations.After(current)
	if err != nil {
		return err
	}
	for _, m := range pending {
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
		logger.Debug("store: applied migration %s", m.Name)
	}
	return nil
}

// inTx commits only when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
