package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"acme/internal/amqp"
	"acme/internal/auth"
	"acme/internal/cache"
	"acme/internal/config"
	apphttp "acme/internal/http"
	"acme/internal/invoices"
	"acme/internal/log"
	"acme/internal/metrics"
	"acme/internal/seed"
	"acme/internal/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	redisKeyPrefix  = "acme:pages:"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SkipMigrations bool
	Seed           bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.SkipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "load the embedded seed dataset before serving")

	return cmd
}

// pageCache is the selected page store plus what must be stopped with it.
type pageCache struct {
	store   *cache.FencedStore
	manager *cache.Manager
	redis   *redis.Client
}

func (p *pageCache) close() {
	if p.manager != nil {
		p.manager.Stop()
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
}

func newPageCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pageCache, error) {
	logger = logger.WithComponent(log.ComponentCache)

	if cfg.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := cache.NewRedisStore(client, redisKeyPrefix, cfg.CacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("Page cache ready", "backend", "redis", "addr", cfg.RedisAddr)
		return &pageCache{store: cache.NewFencedStore(store), redis: client}, nil
	}

	lru := cache.NewLRUCache[[]byte](cfg.CacheMaxEntries, cfg.CacheTTL)
	manager := cache.NewManager(logger)
	manager.Register(lru)
	manager.StartCleanup(cfg.CacheTTL)
	logger.Info("Page cache ready", "backend", "memory", "max_entries", cfg.CacheMaxEntries)
	return &pageCache{store: cache.NewFencedStore(cache.NewMemoryStore(lru)), manager: manager}, nil
}

// seedOnStartup loads the embedded dataset. A failing kind is logged and
// does not stop the server.
func seedOnStartup(ctx context.Context, cfg *config.Config, db *storage.DB, logger *log.Logger, m *metrics.Metrics) error {
	ds, err := seed.Placeholder()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load embedded dataset", err)
	}
	report := seed.NewLoader(db, db.Dialect(), logger,
		seed.WithBcryptCost(cfg.BcryptCost),
		seed.WithMetrics(m),
	).Run(ctx, ds)
	if err := report.Err(); err != nil {
		logger.Warn("Startup seeding incomplete", log.FieldError, err, log.FieldOperation, log.OpSeed)
	}
	return nil
}

func runServe(opts *ServeOptions) error {
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := SetupLogger(cfg, opts.Verbose)
	logger.Info("Starting acme dashboard", log.FieldOperation, log.OpStartup, "port", cfg.Port)

	if !opts.SkipMigrations {
		dialect, err := storage.ParseDialect(cfg.DatabaseDriver)
		if err != nil {
			return WrapExitError(ExitConfigError, "invalid database driver", err)
		}
		if err := storage.RunMigrations(dialect, cfg.DSN()); err != nil {
			return WrapExitError(ExitFailure, "migration failed", err)
		}
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	db, err := OpenDatabase(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	if opts.Seed {
		if err := seedOnStartup(startCtx, cfg, db, logger, m); err != nil {
			return err
		}
	}

	pages, err := newPageCache(startCtx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to set up page cache", err)
	}
	defer pages.close()

	var invalidator cache.Invalidator = cache.NewStoreInvalidator(pages.store, logger)

	var bus *amqp.Client
	if cfg.AMQPURL != "" {
		bus, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to connect to AMQP", err)
		}
		defer bus.Close()
		invalidator = cache.NewBroadcastInvalidator(invalidator, bus)
	}

	repo := storage.NewRepository(db)
	srv, err := apphttp.NewServer(net.JoinHostPort("", cfg.Port), apphttp.Deps{
		Reader:             repo,
		Actions:            invoices.NewService(db, invalidator, logger, invoices.WithMetrics(m)),
		Auth:               auth.NewCredentialsProvider(repo, logger, m),
		Pages:              pages.store,
		DB:                 db,
		Metrics:            m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build server", err)
	}

	ctx, done := GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown failed", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		}
	})

	if bus != nil {
		go func() {
			err := bus.ConsumeInvalidations(ctx, func(ctx context.Context, msg *amqp.InvalidationMessage) error {
				n, err := pages.store.Invalidate(ctx, msg.Path)
				logger.Debug("Applied remote invalidation", log.FieldPath, msg.Path, "origin", msg.Origin, "dropped", n)
				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation consumer stopped", log.FieldError, err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return WrapExitError(ExitFailure, "server failed", err)
		}
	case <-ctx.Done():
	}
	<-done
	return nil
}
