package store

import (
	"context"
	"fmt"

	"campus-cafe/config"
	"campus-cafe/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Backend is an opened Store plus what is needed to shut it down.
// Pool is set only for the postgres backend (migrations run on it).
type Backend struct {
	Store Store
	Pool  *pgxpool.Pool
	close func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects to the backend named by STORE_BACKEND.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case BackendMemory:
		return &Backend{Store: NewMemory()}, nil
	case BackendSQLite, "":
		s, err := OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s, close: func() { _ = s.Close() }}, nil
	case BackendPostgres:
		pool, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Backend{Store: NewPostgres(pool), Pool: pool, close: pool.Close}, nil
	case BackendRedis:
		r := NewRedis(cfg.Redis.Addr, cfg.Redis.Prefix)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return &Backend{Store: r, close: func() { _ = r.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
	}
}
