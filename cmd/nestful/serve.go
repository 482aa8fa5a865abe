package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nestful/nestful/internal/demo"
	"github.com/nestful/nestful/pkg/auth"
	"github.com/nestful/nestful/pkg/cache"
	"github.com/nestful/nestful/pkg/middleware"
	"github.com/nestful/nestful/pkg/server"
	"github.com/nestful/nestful/pkg/throttle"
)

var (
	serveConfigFile string
	serveListen     string
	serveSeed       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo API server",
	Long: `Start the demo blog API. Configuration comes from nestful.yaml (or
--config), overridable through NESTFUL_* environment variables. The
default backend is a seeded in-memory store; point database.driver at
sqlite or postgres to persist.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Config file (default nestful.yaml)")
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Load demo fixtures into a SQL backend before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(serveConfigFile)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	shutdown := server.DefaultShutdownConfig()
	shutdown.Log = logger

	stores, db, err := buildStores(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
	}

	demoCfg := demo.Config{
		Prefix: cfg.Prefix,
		Stores: stores,
		Log:    logger,
	}

	var closers []server.ShutdownHook

	if redisClient != nil {
		demoCfg.Cache = cache.NewRedisWithClient(redisClient, cache.DefaultConfig())
		closers = append(closers, func(context.Context) error { return redisClient.Close() })
	} else {
		memCache := cache.NewMemory()
		demoCfg.Cache = memCache
		closers = append(closers, func(context.Context) error { return memCache.Close() })
	}

	if cfg.Throttle.Enabled {
		throttler, closer, err := buildThrottler(cfg, redisClient)
		if err != nil {
			return err
		}
		demoCfg.Throttle = throttler
		if closer != nil {
			closers = append(closers, closer)
		}
	}

	if cfg.JWT.Secret != "" {
		demoCfg.Authenticator = auth.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL)
	}

	registry, err := demo.Build(demoCfg)
	if err != nil {
		return err
	}

	handler := middleware.NewChain(
		middleware.RequestID(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger: middleware.ZapLogger(logger),
		}),
		middleware.Recovery(),
	).Then(registry)

	serverCfg := server.DefaultConfig(handler)
	serverCfg.Address = cfg.Listen
	if cfg.TLS.CertFile != "" {
		serverCfg.TLS = &server.TLSConfig{
			CertFile: cfg.TLS.CertFile,
			KeyFile:  cfg.TLS.KeyFile,
		}
	}
	if db != nil {
		serverCfg.Database = server.DefaultDatabaseConfig(db)
		closers = append(closers, func(context.Context) error { return db.Close() })
	}

	srv, err := server.New(serverCfg)
	if err != nil {
		return err
	}

	graceful := server.NewGracefulShutdown(srv, shutdown)
	for _, closer := range closers {
		graceful.RegisterHook(closer)
	}

	logger.Info("serving demo API",
		zap.String("addr", cfg.Listen),
		zap.String("prefix", cfg.Prefix),
		zap.String("driver", cfg.Database.Driver),
	)
	return graceful.Start()
}

func buildLogger(mode string) (*zap.Logger, error) {
	switch mode {
	case "dev", "":
		return zap.NewDevelopment()
	case "prod":
		return zap.NewProduction()
	default:
		return nil, fmt.Errorf("log must be dev or prod, got: %s", mode)
	}
}

// buildStores opens the configured backend. The returned *sql.DB is nil
// for the memory driver; callers own closing it.
func buildStores(ctx context.Context, cfg *Config) (*demo.Stores, *sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		stores := demo.MemoryStores()
		return &stores, nil, nil
	}

	driverName := cfg.Database.Driver
	if driverName == "postgres" {
		driverName = "pgx"
	} else {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", cfg.Database.Driver, err)
	}

	if err := demo.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	stores := demo.SQLStores(db)
	if serveSeed {
		if err := demo.SeedSQL(ctx, stores); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return &stores, db, nil
}

// buildThrottler prefers the shared Redis client when available. The
// returned hook stops the token bucket's cleanup goroutine; the Redis
// client is closed by its own hook.
func buildThrottler(cfg *Config, redisClient *redis.Client) (throttle.Throttler, server.ShutdownHook, error) {
	if redisClient != nil {
		throttler, err := throttle.NewRedis(throttle.RedisConfig{
			Client: redisClient,
			Limit:  cfg.Throttle.Limit,
			Window: cfg.Throttle.Window,
			Prefix: "throttle:",
		})
		return throttler, nil, err
	}
	bucket := throttle.NewTokenBucketWithConfig(throttle.TokenBucketConfig{
		Capacity:        cfg.Throttle.Limit,
		RefillRate:      cfg.Throttle.Window,
		CleanupInterval: 5 * time.Minute,
	})
	return bucket, func(context.Context) error { return bucket.Close() }, nil
}
