// Package slot provides the single-key persistent storage the dashboard keeps
// the operator profile in. Each backend performs Get, Put and Delete
// atomically.
package slot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("slot: key not found")

// Store is a synchronous key-value primitive.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Kind string // "file", "sqlite", "postgres" or "memory"
	Path string
	DSN  string
}

// Open builds the Store described by opts.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	logger = logger.With(zap.String("slot", opts.Kind))
	switch opts.Kind {
	case "file":
		return NewFileStore(opts.Path, logger)
	case "sqlite":
		return NewSQLiteStore(ctx, opts.Path, logger)
	case "postgres":
		return NewPostgresStoreFromDSN(ctx, opts.DSN, logger)
	case "memory", "":
		logger.Info("Using in-memory profile slot; the profile will not survive restarts.")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown slot kind %q", opts.Kind)
	}
}
