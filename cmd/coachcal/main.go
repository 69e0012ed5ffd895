package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/coachcal/internal/config"
	"github.com/dukerupert/coachcal/internal/database"
	"github.com/dukerupert/coachcal/internal/janitor"
	"github.com/dukerupert/coachcal/internal/logging"
	"github.com/dukerupert/coachcal/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("COACHCAL_CONFIG"), "path to YAML config (created with defaults if missing)")
	listen := flag.String("listen", "", "listen address, overrides config")
	flag.Parse()

	if err := run(*configPath, *listen); err != nil {
		fmt.Fprintf(os.Stderr, "coachcal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.Listen = listen
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv, err := server.New(db, server.Options{
		MaxEvents:        cfg.MaxEvents,
		Location:         cfg.Location(),
		CacheSize:        cfg.CacheSize,
		PINAttempts:      cfg.PINAttempts,
		PINWindow:        cfg.PINWindow(),
		WebSocketOrigins: cfg.WebSocketOrigins,
	}, logger)
	if err != nil {
		return err
	}

	jan, err := janitor.New(srv.Service(), cfg.PurgeCron, cfg.Retention(), logger.With("component", "janitor"),
		janitor.WithSweepers(srv.RateLimiter()),
		janitor.WithLocation(cfg.Location()),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := jan.Start(ctx); err != nil {
		return err
	}
	defer jan.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("coachcal listening", "addr", cfg.Listen, "db", cfg.DBPath, "max_events", cfg.MaxEvents)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
