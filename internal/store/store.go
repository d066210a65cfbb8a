// Package store publishes rendered notebooks under generated ids so they can
// be shared. The id a store returns becomes the document's share link.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/livetemplate/kayero/internal/config"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("shared notebook not found")

// Store holds published notebooks.
type Store interface {
	// Put stores a rendered notebook and returns its new id.
	Put(ctx context.Context, markdown []byte) (string, error)
	// Get returns a published notebook, or ErrNotFound.
	Get(ctx context.Context, id string) ([]byte, error)
	Close() error
}

// Error wraps a backend failure with the operation that caused it.
type Error struct {
	Driver    string // "sqlite", "postgres", ...
	Operation string // "put", "get", "connect"
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %s failed: %v", e.Driver, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Open creates the store selected by cfg. Database backends sit behind a
// circuit breaker, and everything is wrapped in a read cache when a cache
// TTL is configured.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "memory":
		s = NewMemory()
	case "sqlite":
		s, err = OpenSQLite(ctx, cfg.GetDSN(), log)
	case "postgres":
		s, err = OpenPostgres(ctx, cfg.GetDSN(), log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if _, isMemory := s.(*Memory); !isMemory {
		s = NewBreaker(s, cfg.Driver, DefaultBreakerConfig(), log)
	}

	if ttl := cfg.GetCacheTTL(); ttl > 0 {
		s = NewCached(s, ttl)
	}
	log.Info("share store ready", zap.String("driver", cfg.Driver))
	return s, nil
}
