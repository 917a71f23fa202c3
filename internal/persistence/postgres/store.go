// Package postgres keeps snapshots in a Postgres jsonb table and owns the
// schema shared with the event log consumer.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store provides Postgres-backed snapshot persistence.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to url and applies migrations.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if err := Migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore wraps an existing pool. The schema must already be migrated.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate applies the embedded goose migrations.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Pool exposes the underlying pool for collaborators sharing the database.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Read returns nil when no row exists for key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM snapshots WHERE key=$1`, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Write upserts the snapshot for key inside a transaction.
func (s *Store) Write(ctx context.Context, key string, data []byte) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO snapshots (key, body, updated_at) VALUES ($1, $2::jsonb, NOW())
        ON CONFLICT (key) DO UPDATE SET body=EXCLUDED.body, updated_at=EXCLUDED.updated_at`
	if _, err = tx.Exec(ctx, stmt, key, string(data)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
