package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// Cache defines the key/value store behind Memo. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// New builds the backend selected in cfg
func New(cfg model.CacheConfig) (Cache, error) {
	ttl := cfg.UpdatesTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryCache(ttl, 10*time.Minute), nil
	case "disk":
		return NewDiskCache(cacheDir(cfg.Dir), ttl), nil
	case "layered":
		return NewLayeredCache(ttl, cacheDir(cfg.Dir), ttl), nil
	case "redis":
		return NewRedisCache(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// cacheDir defaults to ~/.crisisfeed/cache
func cacheDir(dir string) string {
	if dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "crisisfeed-cache")
	}
	return filepath.Join(home, ".crisisfeed", "cache")
}
