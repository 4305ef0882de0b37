package store

import (
	"context"
	"fmt"

	"github.com/dengjianbo3/magellan/pkg/config"
)

// New builds the store selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (SessionStore, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
