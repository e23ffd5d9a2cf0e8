package collector

import (
	"context"
	"time"

	"fin_backend/db"
	"fin_backend/logging"
	"fin_backend/quota"

	"go.uber.org/zap"
)

// QuotaChecker is the slice of the quota manager the trigger policy needs.
type QuotaChecker interface {
	CheckAvailable(cost int) quota.Check
}

// TriggerConfig tunes the analysis trigger policy.
type TriggerConfig struct {
	// QuotaCost is the budget checked before triggering.
	QuotaCost int
	// FreshnessWindow is the minimum spacing between analyses.
	FreshnessWindow time.Duration
	// RecencyWindow bounds how old stored records may be to count as new data.
	RecencyWindow time.Duration
}

// TriggerPolicy decides, after each collection, whether insight generation
// should run. All three gates must pass: quota available, last analysis
// outside the freshness window, and fresh records in the store.
type TriggerPolicy struct {
	config  TriggerConfig
	quota   QuotaChecker
	repo    *db.Repository
	stats   *RunStats
	subject string
	logger  *logging.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewTriggerPolicy creates a TriggerPolicy.
func NewTriggerPolicy(config TriggerConfig, quotaChecker QuotaChecker, repo *db.Repository, stats *RunStats, subject string, logger *logging.Logger) *TriggerPolicy {
	return &TriggerPolicy{
		config:  config,
		quota:   quotaChecker,
		repo:    repo,
		stats:   stats,
		subject: subject,
		logger:  logger.Named("trigger"),
		now:     time.Now,
	}
}

// ShouldTriggerAnalysis evaluates the trigger gates. Evaluation errors are
// absorbed as "skip": a broken gate should never escalate a collection run
// into a failure.
func (p *TriggerPolicy) ShouldTriggerAnalysis(ctx context.Context) bool {
	if check := p.quota.CheckAvailable(p.config.QuotaCost); !check.Available {
		p.logger.Info("skipping analysis, quota exhausted",
			zap.Int("requested", p.config.QuotaCost),
			zap.Int("remaining", check.Remaining()),
		)
		return false
	}

	if last := p.stats.LastAnalysisAt(); !last.IsZero() {
		if p.now().Sub(last) < p.config.FreshnessWindow {
			p.logger.Info("skipping analysis, last analysis too recent",
				zap.Time("last_analysis", last),
				zap.Duration("freshness_window", p.config.FreshnessWindow),
			)
			return false
		}
	}

	recent, err := p.repo.CountRecordsSince(ctx, p.subject, p.now().Add(-p.config.RecencyWindow))
	if err != nil {
		p.logger.Warn("skipping analysis, recency check failed", zap.String("error", err.Error()))
		return false
	}
	if recent == 0 {
		p.logger.Info("skipping analysis, no fresh records",
			zap.Duration("recency_window", p.config.RecencyWindow),
		)
		return false
	}

	return true
}
