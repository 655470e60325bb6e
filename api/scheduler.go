/*
scheduler.go - Automated processing scheduler

PURPOSE:

	Periodically runs the two pipeline stages without manual triggers:
	an ingestion pass converting new clock events into draft punches,
	followed by a classification pass over the recent unresolved window.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick runs ingestion first, then classification, so punches
    created by the tick are classified in the same tick
  - Failures are logged and the next tick retries; the scheduler never
    stops on its own

CONFIGURATION:
  - CheckInterval: How often to run (default: 5 minutes)
  - Lookback: Classification window ending today (default: 7 days)
  - Enabled: Whether scheduler is active (default: true)

USAGE:

	scheduler := NewProcessingScheduler(ingestSvc, runner)
	scheduler.Start()
	// ... later
	scheduler.Stop()

SEE ALSO:
  - handlers.go: ProcessEvents / ProcessAttendance (manual triggers)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/meridian/attendance-engine/ingest"
	"github.com/meridian/attendance-engine/pipeline"
)

// ProcessingScheduler runs ingestion and classification on a timer.
type ProcessingScheduler struct {
	Ingest        *ingest.Service
	Runner        *pipeline.Runner
	CheckInterval time.Duration
	Lookback      time.Duration
	BatchSize     int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewProcessingScheduler creates a new scheduler.
func NewProcessingScheduler(ingestSvc *ingest.Service, runner *pipeline.Runner) *ProcessingScheduler {
	return &ProcessingScheduler{
		Ingest:        ingestSvc,
		Runner:        runner,
		CheckInterval: 5 * time.Minute,
		Lookback:      7 * 24 * time.Hour,
		BatchSize:     defaultBatchSize,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *ProcessingScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *ProcessingScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *ProcessingScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.tick()

	for {
		select {
		case <-ps.ticker.C:
			ps.tick()
		case <-ps.stop:
			return
		}
	}
}

// tick runs one ingestion pass followed by one classification pass.
func (ps *ProcessingScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), ps.CheckInterval)
	defer cancel()

	ingestStats, err := ps.Ingest.ProcessUnprocessedEvents(ctx, ps.BatchSize)
	if err != nil {
		log.Printf("[Scheduler] Ingestion pass failed: %v", err)
	} else if ingestStats.Processed > 0 || ingestStats.Errors > 0 {
		log.Printf("[Scheduler] Ingestion pass: processed=%d errors=%d",
			ingestStats.Processed, ingestStats.Errors)
	}

	to := time.Now().UTC()
	from := to.Add(-ps.Lookback)
	runStats, err := ps.Runner.ProcessRange(ctx, from, to)
	if err != nil {
		log.Printf("[Scheduler] Classification pass failed: %v", err)
		return
	}
	if runStats.Punches > 0 {
		log.Printf("[Scheduler] Classification pass: classified=%d discrepancies=%d review=%d",
			runStats.Classified, runStats.Discrepancies, runStats.NeedsReview)
	}
}
