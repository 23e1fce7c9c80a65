package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/docket/pkg/adapters/file"
	"github.com/aretw0/docket/pkg/adapters/loam"
	"github.com/aretw0/docket/pkg/adapters/memory"
	"github.com/aretw0/docket/pkg/adapters/redis"
	"github.com/aretw0/docket/pkg/adapters/sqlite"
	"github.com/aretw0/docket/pkg/persistence/middleware"
	"github.com/aretw0/docket/pkg/ports"
	"github.com/aretw0/docket/pkg/session"
)

// Persistence is the snapshot backend selected by configuration.
// Store is nil for BackendNone.
type Persistence struct {
	Store  ports.SnapshotStore
	Locker ports.DistributedLocker
	close  func() error
}

// Enabled reports whether a backend was configured.
func (p *Persistence) Enabled() bool {
	return p != nil && p.Store != nil
}

// Close releases backend connections.
func (p *Persistence) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// OpenPersistence builds the snapshot store, wraps it with the configured
// middlewares and, for redis, the distributed locker.
func (c *Config) OpenPersistence(ctx context.Context, logger *slog.Logger) (*Persistence, error) {
	pc := c.Persistence
	p := &Persistence{}

	switch pc.Backend {
	case "", BackendNone:
		return p, nil
	case BackendMemory:
		p.Store = memory.NewStore()
	case BackendFile:
		p.Store = file.New(filepath.Join(pc.Path, "sessions"))
	case BackendLoam:
		store, err := loam.Open(pc.Path)
		if err != nil {
			return nil, fmt.Errorf("open loam vault: %w", err)
		}
		p.Store = store
	case BackendSQLite:
		path := pc.Path
		if filepath.Ext(path) == "" {
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, err
			}
			path = filepath.Join(path, "docket.db")
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		p.Store = store
		p.close = store.Close
	case BackendRedis:
		ttl, err := pc.Redis.TTLDuration()
		if err != nil {
			return nil, err
		}
		store := redis.New(pc.Redis.Addr, pc.Redis.Password, pc.Redis.DB,
			redis.WithPrefix(pc.Redis.Prefix), redis.WithTTL(ttl))
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis %s unreachable: %w", pc.Redis.Addr, err)
		}
		p.Store = store
		p.close = store.Close
		if pc.Redis.Lock {
			p.Locker = redis.NewLocker(store.Client(), store.Prefix())
		}
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", pc.Backend)
	}

	var mws []middleware.Middleware
	if len(pc.MaskPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(pc.MaskPatterns))
	}
	active, fallback, err := pc.Keys()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	p.Store = middleware.Chain(p.Store, mws...)

	if logger != nil {
		logger.Debug("persistence ready",
			"backend", pc.Backend,
			"masked", len(pc.MaskPatterns) > 0,
			"encrypted", active != nil,
			"locking", p.Locker != nil)
	}
	return p, nil
}

// SessionManager wraps the store in a session.Manager, or returns nil when
// persistence is disabled.
func (c *Config) SessionManager(p *Persistence, logger *slog.Logger) (*session.Manager, error) {
	if !p.Enabled() {
		return nil, nil
	}
	ttl, err := c.Persistence.LockTTLDuration()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{}
	if logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	if p.Locker != nil {
		opts = append(opts, session.WithLocker(p.Locker))
	}
	if ttl > 0 {
		opts = append(opts, session.WithLockTTL(ttl))
	}
	return session.NewManager(p.Store, opts...), nil
}
