package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the SQL database named by databaseURL. A postgres:// URL uses
// the PostgreSQL driver, anything else is treated as a SQLite file path.
func Connect(databaseURL string) (*sqlx.DB, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		db, err := sqlx.Connect("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil
	}

	dbPath := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite3://"), "sqlite://")
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	statements := []struct {
		table string
		ddl   string
	}{
		{"questions", `
			CREATE TABLE IF NOT EXISTS questions (
				id BIGINT PRIMARY KEY,
				text TEXT NOT NULL,
				choice_a TEXT NOT NULL,
				choice_b TEXT NOT NULL,
				choice_c TEXT NOT NULL,
				choice_d TEXT NOT NULL,
				correct_choice TEXT NOT NULL,
				explanation TEXT NOT NULL DEFAULT '',
				subject TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`},
		{"reading_log", `
			CREATE TABLE IF NOT EXISTS reading_log (
				day TEXT PRIMARY KEY,
				minutes INTEGER NOT NULL
			)`},
		{"reading_sessions", `
			CREATE TABLE IF NOT EXISTS reading_sessions (
				user_id BIGINT PRIMARY KEY,
				started_at TIMESTAMP NOT NULL,
				day TEXT NOT NULL
			)`},
		{"test_records", `
			CREATE TABLE IF NOT EXISTS test_records (
				id BIGINT PRIMARY KEY,
				day TEXT NOT NULL,
				test_type TEXT NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				total INTEGER NOT NULL,
				correct INTEGER NOT NULL,
				accuracy INTEGER NOT NULL,
				started_at TIMESTAMP NOT NULL,
				finished_at TIMESTAMP NOT NULL
			)`},
		{"question_usage", `
			CREATE TABLE IF NOT EXISTS question_usage (
				question_id BIGINT PRIMARY KEY,
				last_asked TIMESTAMP NOT NULL,
				next_due TIMESTAMP NOT NULL,
				correct_count INTEGER NOT NULL,
				wrong_count INTEGER NOT NULL
			)`},
		{"settings", `
			CREATE TABLE IF NOT EXISTS settings (
				name TEXT PRIMARY KEY,
				value BIGINT NOT NULL
			)`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
	}
	return nil
}
