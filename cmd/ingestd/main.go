package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/rpattn/shortreg/internal/api"
	"github.com/rpattn/shortreg/internal/config"
	"github.com/rpattn/shortreg/internal/db"
	"github.com/rpattn/shortreg/internal/diff"
	"github.com/rpattn/shortreg/internal/domain"
	"github.com/rpattn/shortreg/internal/export"
	"github.com/rpattn/shortreg/internal/fetch"
	"github.com/rpattn/shortreg/internal/gate"
	"github.com/rpattn/shortreg/internal/ledger"
	"github.com/rpattn/shortreg/internal/middleware"
	"github.com/rpattn/shortreg/internal/poller"
	"github.com/rpattn/shortreg/internal/snapshot"
	"github.com/rpattn/shortreg/internal/timeseries"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	events := ledger.NewPostgresLedger(conn.Pool)
	markers := ledger.NewPostgresMarkerStore(conn.Pool)
	runs := ledger.NewPostgresRunLog(conn.Pool)

	client := fetch.NewClient(
		fetch.WithMaxAttempts(cfg.FetchMaxAttempts),
		fetch.WithBackoff(cfg.FetchBaseDelay, cfg.FetchMaxDelay),
	)
	sink := poller.NewLogSink(cfg.TrackedCompanies)
	engine := diff.NewEngine(diff.WithEpsilon(cfg.Epsilon))

	// One poller per key space; the two streams are independent and each
	// runs its cycles strictly sequentially.
	aggregatePoller := poller.New(
		domain.KeySpaceAggregate,
		fetch.NewRegisterSource(client, cfg.Aggregate.PageURL, cfg.Aggregate.FileURL, snapshot.AggregateColumns),
		gate.New(domain.KeySpaceAggregate, markers),
		events,
		runs,
		poller.WithEngine(engine),
		poller.WithPollInterval(cfg.PollInterval),
		poller.WithUnpublishedRetry(cfg.UnpublishedRetry),
		poller.WithSink(sink),
	)
	positionsPoller := poller.New(
		domain.KeySpacePositions,
		fetch.NewRegisterSource(client, cfg.Positions.PageURL, cfg.Positions.FileURL, snapshot.PositionColumns),
		gate.New(domain.KeySpacePositions, markers),
		events,
		runs,
		poller.WithEngine(engine),
		poller.WithPollInterval(cfg.PollInterval),
		poller.WithUnpublishedRetry(cfg.UnpublishedRetry),
		poller.WithSink(sink),
	)

	go func() {
		if err := aggregatePoller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("Aggregate poller stopped: %v", err)
		}
	}()
	go func() {
		if err := positionsPoller.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("Positions poller stopped: %v", err)
		}
	}()

	// Read-side API
	view := timeseries.NewView(events)
	exporter := export.NewService(events)
	handler := api.NewHandler(events, view, exporter)

	mux := http.NewServeMux()
	handler.Routes(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting API server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
