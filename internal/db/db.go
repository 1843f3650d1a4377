package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    ocid TEXT UNIQUE NOT NULL,
    description TEXT,
    default_branch TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS pull_requests (
    id TEXT PRIMARY KEY,
    oci_id TEXT UNIQUE,
    repository_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    source_branch TEXT NOT NULL,
    target_branch TEXT NOT NULL,
    status TEXT DEFAULT 'created',
    markdown_file TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME,
    FOREIGN KEY (repository_id) REFERENCES repositories(id)
);

CREATE TABLE IF NOT EXISTS activity (
    id TEXT PRIMARY KEY,
    operation TEXT NOT NULL,
    status TEXT DEFAULT 'PENDING',
    result TEXT,
    pull_request_id TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT
);
`

// GetDataDir returns the directory holding the database and log file.
func GetDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".tasks"), nil
}

// DefaultPath returns the database location used when none is configured.
//
// DATABASE_URL is honored for compatibility with sqlite:/// style URLs.
func DefaultPath() (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return strings.TrimPrefix(url, "sqlite:///"), nil
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "tasks.db"), nil
}

// Init opens the database at dbPath, creating its directory and schema.
// An empty dbPath selects [DefaultPath].
func Init(dbPath string) error {
	if dbPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		dbPath = p
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return err
		}
	}

	return Open(dbPath)
}

// Open connects [DB] to the SQLite file at dsn and applies the schema.
func Open(dsn string) error {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// A single connection keeps :memory: databases shared across queries.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return err
	}

	DB = conn
	return nil
}

// Close closes the database if it is open.
func Close() error {
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}
