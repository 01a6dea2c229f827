/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the achievement engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, parse flags (see config package)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Optionally seed the default catalog for one organization
  5. Configure HTTP router and start serving

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

EXAMPLES:
  ./server -db="./data/achievements.db" -seed-org=org-acme
  ./server -db=":memory:" -log-mode=prod
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachwise/achievement-engine/achievement"
	"github.com/coachwise/achievement-engine/api"
	"github.com/coachwise/achievement-engine/config"
	"github.com/coachwise/achievement-engine/factory"
	"github.com/coachwise/achievement-engine/logging"
	"github.com/coachwise/achievement-engine/store/sqlite"
)

func main() {
	envErr := config.LoadDotEnv()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if envErr != nil {
		log.Warn("failed to load .env, using process environment", "error", envErr)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to initialize database", "db", cfg.DBPath, "error", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, log)

	if cfg.SeedOrgID != "" {
		n, err := handler.SeedCatalog(context.Background(), achievement.OrganizationID(cfg.SeedOrgID), factory.DefaultCatalogJSON())
		if err != nil {
			log.Warn("failed to seed default catalog", "organization_id", cfg.SeedOrgID, "error", err)
		} else {
			log.Info("default catalog seeded", "organization_id", cfg.SeedOrgID, "achievements", n)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
