package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/catalog"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/config"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/db"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/export"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/grouping"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/middleware"
	"github.com/c0x65o/hit-feature-pack-erp-shell-core-sub000/internal/repository"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	entities, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Loaded %d entities from %s", len(entities.Entities()), cfg.Catalog.Path)

	if cfg.Migrations.Enabled {
		if err := db.RunMigrations(cfg.Database); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	reader := repository.NewPostgresTableRepository(repository.NewPoolQuerier(conn.Pool))
	groups := grouping.NewService(entities, reader,
		grouping.WithLogger(logger),
		grouping.WithRowWorkers(cfg.Engine.RowWorkers),
		grouping.WithDefaultGroupPageSize(cfg.Engine.DefaultPageSize),
	)
	exports := export.NewService(groups)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Content-Disposition"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(middleware.LoggingMiddleware(middleware.PrincipalMiddleware(h)))
	}

	mux := http.NewServeMux()
	groupHandler := grouping.NewHTTPHandler(groups)
	mux.Handle(grouping.GroupPath, wrap(groupHandler))
	mux.Handle(grouping.GroupPath+"/export", wrap(export.NewHTTPHandler(exports, groups)))
	mux.Handle("/api/tables/", wrap(groupHandler))
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := conn.Pool.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting table grouping server on %s", cfg.Server.Addr)
		log.Printf("Metrics available at %s", cfg.Server.MetricsPath)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
