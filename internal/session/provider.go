package session

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	Provider      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MemoryEntries caps the in-process store; ignored for redis.
	MemoryEntries int
	IdleTTL       time.Duration
}

func NewStore(ctx context.Context, cfg Config) (Store, error) {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	switch cfg.Provider {
	case "", "memory":
		return NewMemoryStoreSize(cfg.MemoryEntries, idleTTL), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported session store provider: %s", cfg.Provider)
	}
}
