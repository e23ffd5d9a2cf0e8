// Package insights generates analysis artifacts from the latest stored
// financial records: four fixed analysis kinds, each with a fixed confidence
// score, persisted in one transaction per generation run.
package insights

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"fin_backend/core"
	"fin_backend/db"
	"fin_backend/logging"
	"fin_backend/quota"

	"go.uber.org/zap"
)

// Generator produces analysis text from a persona and a prompt. The
// coordinator works without one; a nil generator yields deterministic
// metric summaries instead of model output.
type Generator interface {
	Generate(ctx context.Context, systemRole, userPrompt string) (string, error)
}

// QuotaManager is the slice of the quota ledger the coordinator needs.
type QuotaManager interface {
	CheckAvailable(cost int) quota.Check
	Record(cost int)
}

// StatsRecorder receives the analysis-committed signal after a run persists.
type StatsRecorder interface {
	RecordAnalysis(at time.Time)
}

// Config holds coordinator configuration.
type Config struct {
	// Subject whose records feed the analyses.
	Subject string
	// QuotaCost is charged per generation run.
	QuotaCost int
}

// Coordinator runs insight generation: quota gate, latest-record load,
// per-kind analysis, one transactional persist. Runs are serialized; a
// second caller blocks until the first finishes.
type Coordinator struct {
	config    Config
	repo      *db.Repository
	quota     QuotaManager
	stats     StatsRecorder
	generator Generator
	logger    *logging.Logger

	// now is swappable for tests.
	now func() time.Time

	genMu sync.Mutex
}

// NewCoordinator creates a Coordinator. generator may be nil.
func NewCoordinator(config Config, repo *db.Repository, quotaManager QuotaManager, stats StatsRecorder, generator Generator, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		config:    config,
		repo:      repo,
		quota:     quotaManager,
		stats:     stats,
		generator: generator,
		logger:    logger.Named("insights"),
		now:       time.Now,
	}
}

// GenerateInsights runs one generation pass and returns how many insights
// were stored. Unless force is set, the run is refused when the quota ledger
// cannot cover its cost; a refused run changes no statistics. Quota is
// charged only after the insights commit.
func (c *Coordinator) GenerateInsights(ctx context.Context, force bool) (int, error) {
	c.genMu.Lock()
	defer c.genMu.Unlock()

	if !force {
		check := c.quota.CheckAvailable(c.config.QuotaCost)
		if !check.Available {
			c.logger.Warn("generation refused, quota exhausted",
				zap.Int("requested", c.config.QuotaCost),
				zap.Int("remaining", check.Remaining()),
			)
			return 0, core.ErrQuotaExceeded("insight generation", check.Remaining())
		}
	}

	latest, err := c.repo.LatestPerCategory(ctx, c.config.Subject)
	if err != nil {
		return 0, core.ErrPersistence("loading latest records", err)
	}

	contexts := decodeContexts(latest, c.logger)
	if len(contexts) == 0 {
		return 0, core.ErrNoData(c.config.Subject)
	}

	now := c.now()
	var records []db.InsightRecord
	for _, spec := range analysisSpecs {
		if spec.requires != "" {
			if _, ok := contexts[string(spec.requires)]; !ok {
				c.logger.Info("skipping analysis kind, required category missing",
					zap.String("kind", string(spec.kind)),
					zap.String("requires", string(spec.requires)),
				)
				continue
			}
		}

		records = append(records, db.InsightRecord{
			Title:            spec.title,
			Content:          c.generate(ctx, spec, contexts),
			Kind:             string(spec.kind),
			Confidence:       spec.confidence,
			SourceCategories: encodeSources(spec, contexts),
			CreatedAt:        now,
		})
	}

	stored, err := c.repo.InsertInsights(ctx, records)
	if err != nil {
		return 0, core.ErrPersistence("storing insights", err)
	}

	// Statistics and quota reflect only committed runs.
	c.stats.RecordAnalysis(now)
	c.quota.Record(c.config.QuotaCost)

	c.logger.Info("insight generation complete",
		zap.Int("insights_stored", stored),
		zap.Bool("forced", force),
	)
	return stored, nil
}

// generate produces one insight's content, falling back to a deterministic
// summary when there is no generator or it fails. A generator failure
// degrades the content, never the run.
func (c *Coordinator) generate(ctx context.Context, spec analysisSpec, contexts map[string]map[string]interface{}) string {
	if c.generator == nil {
		return fallbackContent(spec, contexts)
	}

	content, err := c.generator.Generate(ctx, spec.systemRole, buildPrompt(spec, contexts))
	if err != nil {
		c.logger.Warn("generator failed, using deterministic summary",
			zap.String("kind", string(spec.kind)),
			zap.String("error", err.Error()),
		)
		return fallbackContent(spec, contexts)
	}
	return content
}

// decodeContexts parses each record's normalized metrics. A record whose
// metrics do not decode is dropped from the run, not fatal to it.
func decodeContexts(latest map[string]db.FinancialRecord, logger *logging.Logger) map[string]map[string]interface{} {
	contexts := make(map[string]map[string]interface{}, len(latest))
	for category, record := range latest {
		var metrics map[string]interface{}
		if err := json.Unmarshal([]byte(record.Metrics), &metrics); err != nil {
			logger.Warn("dropping record with undecodable metrics",
				zap.String("category", category),
				zap.String("error", err.Error()),
			)
			continue
		}
		contexts[category] = metrics
	}
	return contexts
}

// encodeSources lists the categories an insight drew on, JSON-encoded for
// the source_categories column.
func encodeSources(spec analysisSpec, contexts map[string]map[string]interface{}) string {
	var sources []string
	if spec.requires != "" {
		sources = []string{string(spec.requires)}
	} else {
		sources = make([]string, 0, len(contexts))
		for category := range contexts {
			sources = append(sources, category)
		}
		sort.Strings(sources)
	}

	encoded, err := json.Marshal(sources)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
