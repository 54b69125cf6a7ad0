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

	"github.com/omriShneor/alfred_scheduler/internal/app"
	"github.com/omriShneor/alfred_scheduler/internal/config"
	"github.com/omriShneor/alfred_scheduler/internal/server"
)

func main() {
	cfg := config.LoadFromEnv()

	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	a, err := app.New(cfg, app.Options{Logger: logger})
	if err != nil {
		fatal("initialization", err)
	}
	defer a.Close()

	// Build the calendar client up front so credential problems show in the
	// startup log.
	if !a.Calendar.Ready(context.Background()) {
		logger.Warn("google calendar not available, bookings will report the service as unavailable")
	}

	srv := a.Server()
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("alfred scheduler started",
		"port", cfg.HTTPPort,
		"timezone", a.Location.String(),
		"conflict_policy", cfg.ConflictPolicy.String(),
		"traces", cfg.TracesEnabled(),
	)

	waitForShutdown(srv, logger)
}

func fatal(context string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", context, err)
	os.Exit(1)
}

func waitForShutdown(srv *server.Server, logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
