package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talentlink/matchengine/internal/scorecache"
)

// DefaultSweepInterval is the default interval between sweep cycles.
const DefaultSweepInterval = 30 * time.Second

// DefaultSweepTimeout is the default timeout for a single sweep cycle.
const DefaultSweepTimeout = 30 * time.Second

// DefaultSweepBatchSize is how many queue entries one cycle drains.
const DefaultSweepBatchSize = 50

// SweepConfig configures the recomputation sweep job.
type SweepConfig struct {
	// Interval is the duration between sweep cycles.
	Interval time.Duration
	// Timeout bounds each cycle.
	Timeout time.Duration
	// BatchSize is how many queue entries one cycle drains.
	BatchSize int
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for cycle tracking.
	Metrics *Metrics
	// CacheMetrics for queue depth tracking.
	CacheMetrics *scorecache.Metrics
}

// SweepJob periodically drains the recomputation queue, recomputing stale
// pairs that no request has touched. Delivery is best effort: an entry that
// fails stays pending for the next cycle.
type SweepJob struct {
	config SweepConfig
	engine *Engine
	repo   scorecache.ScoreRepository

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweepJob creates a new recomputation sweep job.
func NewSweepJob(config SweepConfig, engine *Engine, repo scorecache.ScoreRepository) *SweepJob {
	if config.Interval == 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultSweepTimeout
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultSweepBatchSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &SweepJob{config: config, engine: engine, repo: repo}
}

// Start begins the periodic sweep.
// Returns immediately; the job runs in a background goroutine.
func (j *SweepJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the sweep to stop and waits for it to finish.
func (j *SweepJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *SweepJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// RecomputeNow immediately runs one sweep cycle without waiting for the
// ticker.
func (j *SweepJob) RecomputeNow() {
	j.sweep(context.Background())
}

func (j *SweepJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("recompute sweep stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("recompute sweep stopping due to stop signal")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// sweep drains one batch of queue entries. Each entry is recomputed and
// marked processed independently so one bad entry cannot stall the queue.
func (j *SweepJob) sweep(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	entries, err := j.repo.GetStaleScores(ctx, j.config.BatchSize)
	if err != nil {
		j.config.Logger.Error("failed to read recompute queue", "error", err)
		if j.config.Metrics != nil {
			j.config.Metrics.IncSweep("failure")
		}
		return
	}
	if j.config.CacheMetrics != nil {
		j.config.CacheMetrics.SetQueuePending(float64(len(entries)))
	}
	if len(entries) == 0 {
		return
	}

	start := time.Now()
	var processed, failed int

	j.config.Logger.Info("draining recompute queue", "pending", len(entries))

	for i, entry := range entries {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("recompute sweep timeout exceeded",
				"processed", i,
				"total", len(entries),
				"timeout", j.config.Timeout)
			j.finishCycle(start, processed, failed+len(entries)-i)
			return
		default:
		}

		if err := j.processEntry(ctx, entry); err != nil {
			j.config.Logger.Error("failed to process queue entry",
				"student_id", entry.StudentID,
				"error", err)
			failed++
			continue
		}
		processed++
	}

	j.finishCycle(start, processed, failed)
}

// processEntry recomputes the pairs an entry covers and stamps it processed.
// A listing-tagged entry covers one pair; an untagged entry covers every
// stale pair the student has.
func (j *SweepJob) processEntry(ctx context.Context, entry *scorecache.QueueEntry) error {
	if entry.ListingID != nil {
		opts := ComputeOptions{ForceRecompute: true}
		if _, err := j.engine.ComputeMatch(ctx, entry.StudentID, *entry.ListingID, opts); err != nil {
			return err
		}
		return j.repo.MarkProcessed(ctx, entry.StudentID, entry.ListingID)
	}

	records, err := j.repo.GetStudentScores(ctx, entry.StudentID, scorecache.StudentScoreOptions{IncludeStale: true})
	if err != nil {
		return err
	}
	for _, record := range records {
		if !record.IsStale {
			continue
		}
		opts := ComputeOptions{ForceRecompute: true, TenantID: record.TenantID}
		if _, err := j.engine.ComputeMatch(ctx, record.StudentID, record.ListingID, opts); err != nil {
			return err
		}
	}
	return j.repo.MarkProcessed(ctx, entry.StudentID, nil)
}

func (j *SweepJob) finishCycle(start time.Time, processed, failed int) {
	duration := time.Since(start).Seconds()

	status := "success"
	if failed > 0 {
		status = "failure"
	}
	if j.config.Metrics != nil {
		j.config.Metrics.IncSweep(status)
		j.config.Metrics.ObserveSweepDuration(duration)
	}

	j.config.Logger.Info("recompute sweep completed",
		"duration_seconds", duration,
		"entries_processed", processed,
		"entries_failed", failed)
}
