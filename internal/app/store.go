package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/platform/cache"
	"github.com/phoenix-bikes/biketrack/internal/platform/db"
	"github.com/phoenix-bikes/biketrack/internal/storeconfig"
)

// StoreResolver builds the resolver for the configured store sources.
func (c *Config) StoreResolver(logger *slog.Logger) storeconfig.Resolver {
	return storeconfig.Resolver{
		Env:             storeconfig.StoreConfig{URL: c.StoreURL, AnonKey: c.StoreAnonKey, Password: c.StorePassword},
		Host:            c.AppHost,
		Endpoint:        c.StoreConfigEndpoint,
		CredentialsFile: c.StoreCredentialsFile,
		Logger:          logger,
	}
}

// OpenStore resolves the store configuration and connects to it. When no
// source is configured the returned pool is nil and every repository reports
// shared.ErrBackendUnavailable.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*pgxpool.Pool, storeconfig.StoreConfig, error) {
	store, source, err := cfg.StoreResolver(logger).Resolve(ctx)
	if err != nil {
		return nil, storeconfig.StoreConfig{}, err
	}
	if store.Empty() {
		logger.Warn("no store configured, data features are disabled")
		return nil, store, nil
	}
	dsn, err := store.DSN()
	if err != nil {
		return nil, store, err
	}
	if cfg.MigrateOnStart {
		changed, err := db.MigrateUp(dsn)
		if err != nil {
			return nil, store, err
		}
		logger.Info("migrations checked", slog.Bool("applied", changed))
	}
	pool, err := db.New(ctx, dsn, db.PoolOptions{MaxConns: cfg.StoreMaxConns, MaxConnLifetime: 30 * time.Minute})
	if err != nil {
		return nil, store, err
	}
	logger.Info("store connected", slog.String("source", string(source)))
	return pool, store, nil
}

// AsynqRedisOpt converts the Redis address into asynq client options.
func (c *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	opts, err := cache.Options(c.RedisAddr)
	if err != nil {
		return asynq.RedisClientOpt{Addr: c.RedisAddr}
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}
