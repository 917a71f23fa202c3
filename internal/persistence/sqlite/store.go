// Package sqlite keeps snapshots in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is a snapshot table keyed by storage key.
type Store struct {
	conn *sql.DB
}

// Open creates dataDir/mapty.db when missing and applies migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", filepath.Join(dataDir, "mapty.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	// a single connection serialises writers
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Read returns nil when no row exists for key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := s.conn.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// Write upserts the row for key.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	const stmt = `INSERT INTO snapshots (key, body, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
	_, err := s.conn.ExecContext(ctx, stmt, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}
