/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt projection engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then flag overrides)
  2. Initialize SQLite store
  3. Wire sync adapter, engine, API handler
  4. Configure HTTP router and background scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  PORT        HTTP server port (default: 8080)
  DB_PATH     SQLite database path (default: debt.db, ":memory:" works)
  CURRENCY    ISO currency code for display formatting (default: GBP)
  SCHEDULER   Set to "false" to disable the background projection pass

  Flags -port and -db override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the background scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/debt.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hearth/debt-engine/api"
	"github.com/hearth/debt-engine/banksync"
	"github.com/hearth/debt-engine/engine"
	"github.com/hearth/debt-engine/store/sqlite"
)

type config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"debt.db"`
	Currency  string `env:"CURRENCY" envDefault:"GBP"`
	Scheduler bool   `env:"SCHEDULER" envDefault:"true"`
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(log)

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Error("failed to parse configuration", "err", err)
		os.Exit(1)
	}

	// Flag overrides
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	// Wire the engine and handler
	sync := banksync.New(log)
	eng := engine.New(store, sync, log)
	handler := api.NewHandler(store, eng, cfg.Currency, log)
	router := api.NewRouter(handler)

	// Background projection scheduler
	scheduler := api.NewProjectionScheduler(eng, log)
	scheduler.Enabled = cfg.Scheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
