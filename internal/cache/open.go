package cache

import (
	"fmt"

	"github.com/jonathan/benchscope/internal/config"
)

// Open returns the Backend selected by cfg.Backend. postgres is the backend to
// use for "postgres" and may be nil otherwise. The returned close function is
// never nil.
func Open(cfg config.CacheConfig, postgres Backend) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBackend(), noop, nil
	case "redis":
		backend, err := NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return backend, backend.Close, nil
	case "postgres":
		if postgres == nil {
			return nil, noop, fmt.Errorf("postgres cache backend requires a database connection")
		}
		return postgres, noop, nil
	case "none":
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
