package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fin_backend/db"
	"fin_backend/fimcp"
	"fin_backend/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Analyzer is the slice of the insight coordinator the collector invokes
// after a positive trigger decision.
type Analyzer interface {
	GenerateInsights(ctx context.Context, force bool) (int, error)
}

// Config holds collector configuration.
type Config struct {
	// Interval is the spacing between scheduled collection runs.
	Interval time.Duration
	// TickInterval is how often the polling loop wakes to check for due
	// jobs. Minute granularity trades punctuality for a single lightweight
	// timer; default one minute.
	TickInterval time.Duration
	// StopTimeout bounds how long Stop waits for the loop to exit.
	StopTimeout time.Duration
	// RetentionDays prunes records older than this on each scheduled run.
	// Zero disables pruning.
	RetentionDays int
}

// CollectResult summarizes one collection run for manual callers.
type CollectResult struct {
	Success       bool     `json:"success"`
	RecordsStored int      `json:"records_stored"`
	Categories    []string `json:"categories"`
	FailedFetches int      `json:"failed_fetches"`
	Error         string   `json:"error,omitempty"`
}

// Collector drives scheduled and manual collection runs.
//
// Concurrency: a single background goroutine drives scheduled runs; manual
// CollectNow calls run on the caller's goroutine. A per-subject mutex
// serializes the fetch/persist path so a manual run and a scheduled run
// never interleave writes.
type Collector struct {
	config   Config
	client   *fimcp.Client
	database *db.Database
	repo     *db.Repository
	stats    *RunStats
	trigger  *TriggerPolicy
	analyzer Analyzer
	logger   *logging.Logger

	running atomic.Bool

	// collectMu serializes collection runs for the subject.
	collectMu sync.Mutex

	// mu guards the scheduling fields below.
	mu      sync.Mutex
	nextRun time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a Collector. The analyzer may be nil, in which case positive
// trigger decisions are logged and dropped.
func New(config Config, client *fimcp.Client, database *db.Database, repo *db.Repository, stats *RunStats, trigger *TriggerPolicy, analyzer Analyzer, logger *logging.Logger) *Collector {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 5 * time.Second
	}

	return &Collector{
		config:   config,
		client:   client,
		database: database,
		repo:     repo,
		stats:    stats,
		trigger:  trigger,
		analyzer: analyzer,
		logger:   logger.Named("collector"),
	}
}

// IsRunning reports whether the polling loop is active.
func (c *Collector) IsRunning() bool {
	return c.running.Load()
}

// Stats returns a snapshot of the run statistics.
func (c *Collector) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Start launches the polling loop. Idempotent: calling Start while running
// is a no-op, so there is never more than one loop.
func (c *Collector) Start() {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Warn("collection scheduler already running")
		return
	}

	c.mu.Lock()
	c.nextRun = time.Now().Add(c.config.Interval)
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	go c.run(stopCh, doneCh)

	c.logger.Info("collection scheduler started",
		zap.Duration("interval", c.config.Interval),
	)
}

// Stop clears the scheduled job and waits, bounded by StopTimeout, for the
// polling loop to exit. A collection currently in flight is not cancelled;
// it finishes on its own.
func (c *Collector) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.mu.Lock()
	c.nextRun = time.Time{}
	stopCh, doneCh := c.stopCh, c.doneCh
	c.stopCh, c.doneCh = nil, nil
	c.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		c.logger.Info("collection scheduler stopped")
	case <-time.After(c.config.StopTimeout):
		c.logger.Warn("collection scheduler stop timed out",
			zap.Duration("timeout", c.config.StopTimeout),
		)
	}
}

// run is the polling loop: wake once per tick, run the job if due. A panic
// inside one firing is caught and logged so the scheduler itself is never
// fatal.
func (c *Collector) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if !c.due(now) {
				continue
			}
			c.fire(now)
		}
	}
}

func (c *Collector) due(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.nextRun.IsZero() && !now.Before(c.nextRun)
}

// fire runs one scheduled collection and reschedules.
func (c *Collector) fire(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("scheduled collection panicked", zap.Any("panic", r))
		}
	}()

	c.mu.Lock()
	c.nextRun = now.Add(c.config.Interval)
	c.mu.Unlock()

	ctx := context.Background()
	result := c.Collect(ctx)
	if !result.Success {
		c.logger.Warn("scheduled collection failed", zap.String("error", result.Error))
	}

	if c.config.RetentionDays > 0 {
		if pruned, err := c.database.Prune(ctx, c.config.RetentionDays); err != nil {
			c.logger.Warn("retention pruning failed", zap.String("error", err.Error()))
		} else if pruned.TotalDeleted > 0 {
			c.logger.Info("pruned expired rows", zap.Int64("deleted", pruned.TotalDeleted))
		}
	}
}

// Collect performs one collection run: fetch every category, persist the
// successful results in one transaction, update statistics, then evaluate
// the trigger policy. Safe to call manually while the scheduler runs; runs
// for the same subject are serialized.
func (c *Collector) Collect(ctx context.Context) CollectResult {
	c.collectMu.Lock()
	defer c.collectMu.Unlock()

	start := time.Now()
	// Correlation ID tying the fetch, persist, and trigger log lines of one
	// run together.
	logger := c.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("starting collection", zap.String("subject", c.client.Subject()))

	results := c.client.FetchAll(ctx)
	session := c.client.Session()

	var records []db.FinancialRecord
	var categories []string
	failed := 0

	for _, result := range results {
		if !result.Success {
			failed++
			continue
		}

		record, err := toFinancialRecord(result, session)
		if err != nil {
			// An unencodable payload degrades that category, not the run.
			logger.Warn("could not encode fetch result",
				zap.String("category", string(result.Category)),
				zap.String("error", err.Error()),
			)
			failed++
			continue
		}
		records = append(records, record)
		categories = append(categories, string(result.Category))
	}

	stored, err := c.repo.InsertFinancialRecords(ctx, records)
	if err != nil {
		// A persistence failure fails the whole run even though some
		// fetches succeeded; the batch is all-or-nothing.
		c.stats.RecordRun(false, nil, time.Now())
		logger.Error("collection persistence failed", zap.String("error", err.Error()))
		return CollectResult{
			FailedFetches: failed,
			Error:         fmt.Sprintf("persistence failed: %v", err),
		}
	}

	c.stats.RecordRun(true, categories, time.Now())
	logger.Info("collection complete",
		zap.Int("records_stored", stored),
		zap.Int("failed_fetches", failed),
		zap.Duration("duration", time.Since(start)),
	)

	if c.trigger.ShouldTriggerAnalysis(ctx) {
		if c.analyzer == nil {
			logger.Warn("analysis triggered but no analyzer configured")
		} else if generated, err := c.analyzer.GenerateInsights(ctx, false); err != nil {
			logger.Warn("triggered analysis failed", zap.String("error", err.Error()))
		} else {
			logger.Info("triggered analysis complete", zap.Int("insights_generated", generated))
		}
	}

	return CollectResult{
		Success:       true,
		RecordsStored: stored,
		Categories:    categories,
		FailedFetches: failed,
	}
}

// toFinancialRecord converts a successful fetch into its storage row.
func toFinancialRecord(result fimcp.FetchResult, session fimcp.Session) (db.FinancialRecord, error) {
	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return db.FinancialRecord{}, fmt.Errorf("failed to encode metrics: %w", err)
	}
	payload, err := json.Marshal(result.Payload)
	if err != nil {
		return db.FinancialRecord{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	return db.FinancialRecord{
		Category:   string(result.Category),
		Subject:    session.Subject,
		SessionID:  session.SessionID,
		Metrics:    string(metrics),
		RawPayload: string(payload),
		StoredAt:   result.FetchedAt,
	}, nil
}
