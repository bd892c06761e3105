package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/pkg/config"
	"github.com/chainsafe/bridge-reconciler/pkg/db"
	"github.com/chainsafe/bridge-reconciler/pkg/engine"
	"github.com/chainsafe/bridge-reconciler/pkg/indexer"
	"github.com/chainsafe/bridge-reconciler/pkg/notify"
	"github.com/chainsafe/bridge-reconciler/pkg/pgutil"
	"github.com/chainsafe/bridge-reconciler/pkg/registry"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Bridge Transfer Reconciler")

	// Initialize database
	bdb, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := db.NewStore(bdb)
	defer store.Close()
	logger.Info("Database connection established")

	// Load the route registry
	reg, err := registry.Load(cfg.RoutesFile)
	if err != nil {
		logger.Fatal("Failed to load route registry", zap.Error(err))
	}
	logger.Info("Route registry loaded", zap.Int("routes", len(reg.Routes())))

	// Build one adapter stack per route
	adapters := make(map[string]indexer.SourceAdapter, len(reg.Routes()))
	for _, route := range reg.Routes() {
		adapter, err := indexer.NewRouteAdapter(route, cfg.Sync.IndexerTimeout, logger)
		if err != nil {
			logger.Fatal("Failed to build indexer adapter", zap.Error(err))
		}
		adapters[route.ID()] = adapter
	}

	// Optional downstream publisher
	var notifier engine.Notifier
	if cfg.Notify.Enabled {
		publisher, err := notify.NewPublisher(cfg.Notify, logger)
		if err != nil {
			logger.Fatal("Failed to connect notifier", zap.Error(err))
		}
		defer publisher.Close()
		notifier = publisher
	}

	eng := engine.New(store, reg, adapters, notifier, cfg.Sync, logger)
	eng.Start()
	defer eng.Stop()

	// Setup HTTP server for API and metrics
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint (liveness)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness endpoint
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !eng.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	// Metrics endpoint
	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled")
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", handleListRecords(store, logger))
		r.Get("/records/{id}", handleGetRecord(store, logger))
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Reconciler stopped")
}

func handleListRecords(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route := db.RouteFilter{
			FromChain: r.URL.Query().Get("from_chain"),
			ToChain:   r.URL.Query().Get("to_chain"),
			Bridge:    r.URL.Query().Get("bridge"),
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		take, err := strconv.Atoi(r.URL.Query().Get("take"))
		if err != nil || take <= 0 || take > 200 {
			take = 50
		}

		records, err := store.ListRecords(r.Context(), route, skip, take)
		if err != nil {
			logger.Error("Failed to list records", zap.Error(err))
			http.Error(w, "Failed to list records", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{"records": records}); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}

func handleGetRecord(store *db.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		record, err := store.RecordByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			logger.Error("Failed to get record", zap.Error(err), zap.String("id", id))
			http.Error(w, "Failed to get record", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(record); err != nil {
			logger.Error("Failed to encode response", zap.Error(err))
		}
	}
}
