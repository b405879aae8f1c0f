// Package backend opens the configured identity storage.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/suspectuso/green-coin/internal/config"
	"github.com/suspectuso/green-coin/internal/identity"
	"github.com/suspectuso/green-coin/internal/storage"
)

// Backend hands out per-origin identity stores
type Backend struct {
	Name string

	store *storage.Storage
	rdb   *redis.Client
}

// Open connects to the backend named by cfg.IdentityBackend
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	switch cfg.IdentityBackend {
	case config.BackendSQLite, "":
		store, err := storage.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("storage initialized", "backend", config.BackendSQLite, "path", cfg.DBPath)
		return &Backend{Name: config.BackendSQLite, store: store}, nil

	case config.BackendRedis:
		rdb, err := identity.NewRedisClient(ctx, identity.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		log.Info("storage initialized", "backend", config.BackendRedis, "addr", cfg.RedisAddr)
		return &Backend{Name: config.BackendRedis, rdb: rdb}, nil

	default:
		return nil, fmt.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}
}

// Store returns the identity store of origin
func (b *Backend) Store(origin string) identity.Store {
	if b.rdb != nil {
		return identity.NewRedisStore(b.rdb, origin)
	}
	return b.store.Identity(origin)
}

// Origins lists every origin that has a stored identity
func (b *Backend) Origins(ctx context.Context) ([]string, error) {
	if b.rdb != nil {
		return identity.RedisOrigins(ctx, b.rdb)
	}
	return b.store.Origins(ctx)
}

func (b *Backend) Close() error {
	if b.rdb != nil {
		return b.rdb.Close()
	}
	return b.store.Close()
}
