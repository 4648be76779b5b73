/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contribution engine server.
  Handles configuration, store selection, dependency injection, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present), parse command-line flags
  2. Select store: Postgres when DATABASE_URL is set, otherwise SQLite
  3. Build exchange rates and optional department/field config
  4. Create report service, refresh scheduler and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: contribution.db)
            Use ":memory:" for in-memory database
  -refresh  Periodic refresh interval (default: 15m, 0 disables)
  -config   Optional JSON document with department rules and separate fields

ENVIRONMENT:
  Environment values override flags.
  PORT                 HTTP port
  DATABASE_URL         Postgres connection string (selects the Postgres store)
  SQLITE_PATH          SQLite database path
  ALLOWED_ORIGINS      Comma-separated CORS origins
  REFRESH_INTERVAL     Go duration, e.g. "10m"
  BASE_CURRENCY_RATES  e.g. "USD=3.7,EUR=4.0,GBP=4.6"
  CONFIG_PATH          Same as -config

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the refresh scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - report/service.go: Batch orchestrator
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Stores
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/contribution-engine/api"
	"github.com/warp/contribution-engine/compensation"
	"github.com/warp/contribution-engine/factory"
	"github.com/warp/contribution-engine/report"
	"github.com/warp/contribution-engine/store/postgres"
	"github.com/warp/contribution-engine/store/sqlite"
)

const defaultRates = "USD=3.7,EUR=4.0,GBP=4.6"

func main() {
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "contribution.db", "SQLite database path")
	refresh := flag.Duration("refresh", 15*time.Minute, "Report refresh interval (0 disables)")
	configPath := flag.String("config", "", "JSON config with department rules and separate fields")
	flag.Parse()

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*port = p
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		*dbPath = v
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid REFRESH_INTERVAL: %v", err)
		}
		*refresh = d
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*configPath = v
	}

	rateSpec := os.Getenv("BASE_CURRENCY_RATES")
	if rateSpec == "" {
		rateSpec = defaultRates
	}
	rates, err := compensation.ParseRates(rateSpec)
	if err != nil {
		log.Fatalf("Invalid BASE_CURRENCY_RATES: %v", err)
	}

	opts := report.Options{Converter: rates}
	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		opts.Departments = cfg.Departments
		opts.SeparateFields = cfg.SeparateFields
	}

	ctx := context.Background()

	// Initialize store
	var (
		records compensation.RecordSource
		config  compensation.ConfigStore
		seeds   *sqlite.Store
		closer  func()
	)
	if os.Getenv("DATABASE_URL") != "" {
		pool, err := postgres.NewPool(ctx)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate Postgres: %v", err)
		}
		records, config, closer = store, store, store.Close
		log.Println("🗄️  Using Postgres record store")
	} else {
		store, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		records, config, seeds = store, store, store
		closer = func() { store.Close() }
		log.Printf("🗄️  Using SQLite record store at %s", *dbPath)
	}
	defer closer()

	// Initialize service
	service := report.NewService(records, config, opts)
	scheduler := report.NewRefreshScheduler(service)
	scheduler.Interval = *refresh
	scheduler.Enabled = *refresh > 0
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(service, records)
	handler.Scheduler = scheduler
	handler.Seeds = seeds

	// Create router
	router := api.NewRouter(handler, splitOrigins(os.Getenv("ALLOWED_ORIGINS")))

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		log.Printf("💱 Exchange rates: %s", rates)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func loadConfig(path string) (compensation.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return compensation.Config{}, err
	}
	return factory.NewConfigFactory().ParseConfig(data)
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
