package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "evalmeter.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &DB{DB: db}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database initialized", "path", dbPath)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		// Submitted evaluation records, one row per evaluator submission
		`CREATE TABLE IF NOT EXISTS evaluations (
			token TEXT PRIMARY KEY,
			doi TEXT,
			evaluator_name TEXT,
			evaluator_role TEXT,
			expertise_weight REAL,
			payload TEXT NOT NULL, -- full record JSON
			created_at DATETIME NOT NULL
		)`,

		// Persisted corpus aggregation results; immutable once written
		`CREATE TABLE IF NOT EXISTS aggregate_snapshots (
			id TEXT PRIMARY KEY,
			paper_set_version TEXT NOT NULL,
			component TEXT NOT NULL,
			view_type TEXT NOT NULL,
			report TEXT NOT NULL, -- CorpusReport JSON
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_evaluations_doi ON evaluations(doi)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_lookup ON aggregate_snapshots(component, view_type, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
