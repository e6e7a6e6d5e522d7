package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/tenantkit/redis_client"
)

// Backend kinds accepted by Open.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config 缓存配置
type Config struct {
	Backend  string              `mapstructure:"backend" json:"backend" yaml:"backend" default:"file" validate:"oneof=file memory redis"`
	Lifetime time.Duration       `mapstructure:"lifetime" json:"lifetime" yaml:"lifetime" default:"2h"`
	Redis    redis_client.Config `mapstructure:"redis" json:"redis" yaml:"redis"`
}

// Backend picks the cache a tenant stores its model in, given the path of
// the tenant's configuration document.
type Backend func(documentPath string) BlobCache

// FileBackend stores each tenant's blob next to its configuration document.
func FileBackend(lifetime time.Duration) Backend {
	return func(documentPath string) BlobCache {
		return NewFileCache(filepath.Dir(documentPath), lifetime)
	}
}

// Shared hands every tenant the same cache.
func Shared(c BlobCache) Backend {
	return func(string) BlobCache { return c }
}

// Open builds the backend described by cfg. The returned close function
// releases any connection the backend holds.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Backend, func() error, error) {
	lifetime := cfg.Lifetime
	if lifetime == 0 {
		lifetime = DefaultLifetime
	}
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		return FileBackend(lifetime), noop, nil
	case BackendMemory:
		return Shared(NewMemoryCache(lifetime)), noop, nil
	case BackendRedis:
		client, err := redis_client.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return Shared(NewRedisCache(client, cfg.Redis.KeyPrefix, lifetime)), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
