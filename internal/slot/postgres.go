package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	pgCreateTable = `CREATE TABLE IF NOT EXISTS dashboard_slots (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	pgSelect = `SELECT value FROM dashboard_slots WHERE key = $1`
	pgUpsert = `INSERT INTO dashboard_slots (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	pgDelete = `DELETE FROM dashboard_slots WHERE key = $1`
)

// Pool is an interface that abstracts the pgxpool.Pool for testability.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Close()
}

// PostgresStore keeps slots in a postgres table.
type PostgresStore struct {
	pool   Pool
	logger *zap.Logger
}

// NewPostgresStoreFromDSN connects a pool to dsn and prepares the table.
func NewPostgresStoreFromDSN(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	store, err := NewPostgresStore(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing pool and creates the slot table if needed.
func NewPostgresStore(ctx context.Context, pool Pool, logger *zap.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("postgres slot requires a pool")
	}
	if _, err := pool.Exec(ctx, pgCreateTable); err != nil {
		return nil, fmt.Errorf("failed to create dashboard_slots: %w", err)
	}
	logger.Info("Postgres profile slot ready")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Get returns the value stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, pgSelect, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slot %q: %w", key, err)
	}
	return value, nil
}

// Put upserts value under key.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, pgUpsert, key, value); err != nil {
		return fmt.Errorf("failed to write slot %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, pgDelete, key)
	if err != nil {
		return fmt.Errorf("failed to delete slot %q: %w", key, err)
	}
	s.logger.Debug("Deleted slot", zap.String("key", key), zap.Int64("rows", tag.RowsAffected()))
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
