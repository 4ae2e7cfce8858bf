// Command sessiond serves the session service over HTTP and runs the
// expired-session sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("sessiond stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	dcfg, err := loadDaemonConfig()
	if err != nil {
		return err
	}
	log := newLogger(dcfg.LogLevel, dcfg.LogFormat)

	cfg, err := goSession.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	opts, err := redis.ParseURL(dcfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	svc, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(log).
		WithAuditSink(goSession.NewSlogSink(log.With("component", "audit"))).
		Build()
	if err != nil {
		return fmt.Errorf("build session service: %w", err)
	}
	defer svc.Close()

	report := svc.SecurityReport()
	log.Info("session service ready",
		"signing_algorithm", report.SigningAlgorithm,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"max_access_exposure", report.MaxAccessExposure,
		"refresh_rotation", report.RefreshRotation,
		"refresh_throttle", report.RefreshThrottle,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if h := svc.Health(ctx); !h.RedisAvailable {
		log.Warn("redis not reachable at start-up; verification will fail closed until it is")
	}

	srv := &http.Server{
		Addr:              dcfg.Addr,
		Handler:           corsHandler(dcfg.AllowedOrigins).Handler(newServer(svc, log, dcfg.AdminToken).routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("sessiond listening", "addr", dcfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return svc.NewSweeper().Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, scancel := context.WithTimeout(context.Background(), dcfg.ShutdownTimeout)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func corsHandler(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
}
