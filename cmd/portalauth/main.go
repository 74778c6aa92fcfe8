// Command portalauth serves the intranet authentication API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/internal/config"
	"github.com/intranetkit/portalauth/internal/httpapi"
	"github.com/intranetkit/portalauth/internal/logging"
	promexport "github.com/intranetkit/portalauth/metrics/export/prometheus"
	"github.com/intranetkit/portalauth/revocation"
	"github.com/intranetkit/portalauth/userstore"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logging.New(cfg.Log.Logging(), "portalauth")
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("portalauth_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting portalauth", slog.String("env", cfg.Env))

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	pool, err := openPostgres(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := userstore.NewPostgres(pool)
	if err := users.EnsureSchema(ctx); err != nil {
		return err
	}

	pc := cfg.Portal()
	builder := portalauth.New().
		WithConfig(pc).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(log).
		WithAuditSink(portalauth.NewSlogSink(log))
	if pc.Revocation.Backend == portalauth.RevocationPostgres {
		store := revocation.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		builder = builder.WithRevocationStore(store)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	go engine.RunJanitor(ctx)

	handler := httpapi.NewRouter(httpapi.Options{
		Engine:  engine,
		Logger:  log,
		Metrics: promexport.NewExporter(engine).Handler(),
		Timeout: cfg.HTTP.RequestTimeout,
		Ready: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		},
	})

	return serve(ctx, cfg.HTTP, handler, log)
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func serve(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	log.Info("http_listen_start", slog.String("addr", srv.Addr))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
		return nil
	}
	log.Info("http_stopped")
	return nil
}
