// Package sqlite persists every driven store in one SQLite database using
// the pure Go modernc.org/sqlite driver.
//
// The schema comes from the numbered files in migrations/; each applied
// version is recorded in schema_migrations. The database runs in WAL mode
// and a partial unique index on jobs(project_id) keeps at most one active
// job per project, even when several processes share the file.
package sqlite
