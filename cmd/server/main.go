/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the attendance classification server. Handles
	configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load .env (if present) and parse command-line flags
 2. Initialize SQLite store
 3. Train the predictor from historical punches
 4. Wire ingestion, pipeline, and summary services into the API handler
 5. Start the processing scheduler and HTTP server

COMMAND-LINE FLAGS:

	-port        HTTP server port (default: 8080)
	-db          SQLite database path (default: attendance.db)
	             Use ":memory:" for in-memory database
	-flex        Schedule flexibility window in minutes (default: 30)
	-heuristic   Enable the heuristic engine (default: true)
	-predictor   Enable the statistical engine (default: true)
	-tiebreak    Engine whose state wins on type-agreement ties
	             ("heuristic" or "predictor", default: heuristic)
	-scheduler   Run the background processing scheduler (default: true)
	-interval    Scheduler check interval (default: 5m)

	Flags fall back to environment variables (PORT, DATABASE_PATH, ...)
	loaded from .env when unset on the command line.

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop the scheduler
	2. Stop accepting new connections
	3. Wait for active requests to complete (30s timeout)
	4. Close database connection
	5. Exit

EXAMPLES:

	# Run with file database
	./server -db="./data/attendance.db"

	# Heuristic-only deployment
	./server -predictor=false

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background processing
  - store/sqlite/sqlite.go: Database implementation
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
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meridian/attendance-engine/api"
	"github.com/meridian/attendance-engine/attendance"
	"github.com/meridian/attendance-engine/ingest"
	"github.com/meridian/attendance-engine/pipeline"
	"github.com/meridian/attendance-engine/predictor"
	"github.com/meridian/attendance-engine/store/sqlite"
	"github.com/meridian/attendance-engine/summary"
)

func main() {
	// .env is optional; flags take precedence over its values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "attendance.db"), "SQLite database path")
	flex := flag.Int("flex", envInt("FLEXIBILITY_MINUTES", 30), "schedule flexibility window in minutes")
	heuristicOn := flag.Bool("heuristic", envBool("HEURISTIC_ENABLED", true), "enable the heuristic engine")
	predictorOn := flag.Bool("predictor", envBool("PREDICTOR_ENABLED", true), "enable the statistical engine")
	tiebreak := flag.String("tiebreak", envStr("TIEBREAK_ENGINE", "heuristic"), "tiebreak engine (heuristic|predictor)")
	schedulerOn := flag.Bool("scheduler", envBool("SCHEDULER_ENABLED", true), "run the background processing scheduler")
	interval := flag.Duration("interval", 5*time.Minute, "scheduler check interval")
	flag.Parse()

	cfg := attendance.Config{
		FlexibilityMinutes: *flex,
		HeuristicEnabled:   *heuristicOn,
		PredictorEnabled:   *predictorOn,
		TiebreakEngine:     attendance.SourceHeuristic,
	}
	if *tiebreak == "predictor" {
		cfg.TiebreakEngine = attendance.SourcePredictor
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire services
	pred := predictor.New(store)
	if cfg.PredictorEnabled {
		if err := pred.Train(context.Background()); err != nil {
			log.Printf("Warning: predictor training failed: %v", err)
		}
	}

	ingestSvc := ingest.New(store)
	runner := pipeline.NewRunner(store, store, pred, cfg)
	summarySvc := summary.New(store)

	handler := api.NewHandler(store, ingestSvc, runner, summarySvc)
	router := api.NewRouter(handler)

	scheduler := api.NewProcessingScheduler(ingestSvc, runner)
	scheduler.CheckInterval = *interval
	scheduler.Enabled = *schedulerOn
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}
