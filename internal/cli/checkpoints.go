package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/aris/internal/config"
	"github.com/aretw0/aris/pkg/adapters/file"
	"github.com/aretw0/aris/pkg/adapters/memory"
	"github.com/aretw0/aris/pkg/adapters/redis"
	"github.com/aretw0/aris/pkg/adapters/sqlite"
	"github.com/aretw0/aris/pkg/checkpoint"
	"github.com/aretw0/aris/pkg/checkpoint/middleware"
	"github.com/aretw0/aris/pkg/ports"
)

// openCheckpoints builds the configured store behind redaction, encryption
// and a Manager. It returns nil for the "none" backend.
func (a *App) openCheckpoints(ctx context.Context, cfg config.CheckpointConfig) (*checkpoint.Manager, error) {
	var (
		store       ports.CheckpointStore
		managerOpts = []checkpoint.Option{checkpoint.WithLogger(a.Logger)}
	)

	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory, "":
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Dir)
	case config.BackendRedis:
		var opts []redis.Option
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		rs := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...)
		a.closers = append(a.closers, rs)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		if cfg.DistributedLock {
			managerOpts = append(managerOpts, checkpoint.WithLocker(redis.NewLocker(rs.Client(), redis.DefaultPrefix)))
		}
		store = rs
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		ss, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite checkpoints: %w", err)
		}
		a.closers = append(a.closers, ss)
		store = ss
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}

	var mws []middleware.Middleware
	if len(cfg.RedactPatterns) > 0 {
		redact, err := middleware.NewRedactMiddleware(cfg.RedactPatterns)
		if err != nil {
			return nil, fmt.Errorf("invalid redact patterns: %w", err)
		}
		mws = append(mws, redact)
	}
	if cfg.EncryptionKey != "" {
		key, err := cfg.Key()
		if err != nil {
			return nil, err
		}
		encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, encrypt)
	}

	return checkpoint.NewManager(middleware.Chain(store, mws...), managerOpts...), nil
}
