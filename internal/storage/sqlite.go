// Package storage is the relational metadata store for papers, force models,
// parameters and figures.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Errors returned by the store.
var (
	// ErrDuplicateTitle indicates a live paper already has the title hash.
	ErrDuplicateTitle = errors.New("a live paper with this title already exists")

	// ErrNotFound indicates the paper does not exist.
	ErrNotFound = errors.New("paper not found")
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			journal TEXT,
			pub_year INTEGER,
			doi TEXT,
			title_hash TEXT NOT NULL,
			source_path TEXT,
			source_hash TEXT,
			status TEXT NOT NULL,
			supersedes TEXT,
			body_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		-- One live paper per normalized title; retracted and superseded rows keep their hash
		CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_title_live
			ON papers(title_hash) WHERE status IN ('pending', 'active');
		CREATE INDEX IF NOT EXISTS idx_papers_source_hash ON papers(source_hash) WHERE source_hash IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status);

		CREATE TABLE IF NOT EXISTS force_models (
			id TEXT PRIMARY KEY,
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			formula TEXT NOT NULL,
			meaning TEXT,
			computational_hint TEXT,
			formula_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			UNIQUE(paper_id, formula_hash)
		);
		CREATE INDEX IF NOT EXISTS idx_force_models_paper ON force_models(paper_id);

		CREATE TABLE IF NOT EXISTS parameters (
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			category TEXT NOT NULL CHECK (category IN ('geometric', 'electrical', 'dimensionless', 'other')),
			name TEXT NOT NULL,
			symbol TEXT,
			value TEXT,
			unit TEXT,
			meaning TEXT,
			enriched_physics TEXT,
			source TEXT,
			PRIMARY KEY (paper_id, position)
		);

		CREATE TABLE IF NOT EXISTS figures (
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			page INTEGER NOT NULL,
			image_path TEXT NOT NULL,
			caption TEXT NOT NULL,
			linked_json TEXT,
			PRIMARY KEY (paper_id, page)
		);

		-- Full-text search virtual table (standalone, not external content)
		CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
			id UNINDEXED,
			title,
			background,
			phenomena,
			keywords
		);
	`

	_, err := db.Exec(schema)
	return err
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (d *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.,/\\$") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
