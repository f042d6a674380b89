package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hsualexotake/inseam-sub000/internal/config"
	"github.com/hsualexotake/inseam-sub000/internal/logging"
	"github.com/hsualexotake/inseam-sub000/internal/store"
	"github.com/hsualexotake/inseam-sub000/internal/store/memory"
	"github.com/hsualexotake/inseam-sub000/internal/store/postgres"
	"github.com/hsualexotake/inseam-sub000/internal/tracker"
	"github.com/hsualexotake/inseam-sub000/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_driver", cfg.Database.Driver,
		"max_batch_rows", cfg.Engine.MaxBatchRows,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"sweeper_enabled", cfg.Sweeper.Enabled,
	)

	ctx := context.Background()

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	service := tracker.NewService(st, cfg)
	server := web.NewServer(service, cfg)

	// SIGINT/SIGTERM cancel the run context for every component.
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Server.Addr())
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Sweeper.Enabled {
		g.Go(func() error {
			service.StartArchiveSweeper(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore builds the configured store backend. The returned cleanup closes
// any underlying connections.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if strings.ToLower(cfg.Database.Driver) == "memory" {
		slog.Info("using in-memory store")
		return memory.New(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	st := postgres.New(pool)
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return st, pool.Close, nil
}
