// Package collector runs the recurring collection job: fetch all categories
// from the provider, persist the normalized results, update run statistics,
// and hand off to insight generation when the trigger policy allows.
package collector

import (
	"sort"
	"sync"
	"time"
)

// RunStats tracks process-wide collection statistics. In-memory only;
// counters reset on restart.
//
// Thread-Safety: all methods are safe for concurrent use. The invariant
// totalRuns == successfulRuns + failedRuns holds at every observable point
// because a run is counted once, atomically, when it finishes.
type RunStats struct {
	mu             sync.Mutex
	totalRuns      int
	successfulRuns int
	failedRuns     int
	lastRunAt      time.Time
	lastAnalysisAt time.Time
	categoriesSeen map[string]struct{}
	analysisCount  int
}

// StatsSnapshot is a point-in-time copy of RunStats for the status surface.
type StatsSnapshot struct {
	TotalRuns      int       `json:"total_collections"`
	SuccessfulRuns int       `json:"successful_collections"`
	FailedRuns     int       `json:"failed_collections"`
	LastRunAt      time.Time `json:"last_collection_time,omitzero"`
	LastAnalysisAt time.Time `json:"last_analysis_time,omitzero"`
	CategoriesSeen []string  `json:"data_types_collected"`
	AnalysisCount  int       `json:"analysis_count"`
}

// NewRunStats creates an empty RunStats.
func NewRunStats() *RunStats {
	return &RunStats{
		categoriesSeen: make(map[string]struct{}),
	}
}

// RecordRun counts one finished collection run and folds in the categories
// that produced records.
func (s *RunStats) RecordRun(success bool, categories []string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRuns++
	if success {
		s.successfulRuns++
	} else {
		s.failedRuns++
	}
	s.lastRunAt = at

	for _, category := range categories {
		s.categoriesSeen[category] = struct{}{}
	}
}

// RecordAnalysis counts one committed insight generation pass.
func (s *RunStats) RecordAnalysis(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analysisCount++
	s.lastAnalysisAt = at
}

// LastAnalysisAt returns when the last analysis committed, or the zero time.
func (s *RunStats) LastAnalysisAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalysisAt
}

// Snapshot returns a copy of the current statistics.
func (s *RunStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]string, 0, len(s.categoriesSeen))
	for category := range s.categoriesSeen {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return StatsSnapshot{
		TotalRuns:      s.totalRuns,
		SuccessfulRuns: s.successfulRuns,
		FailedRuns:     s.failedRuns,
		LastRunAt:      s.lastRunAt,
		LastAnalysisAt: s.lastAnalysisAt,
		CategoriesSeen: categories,
		AnalysisCount:  s.analysisCount,
	}
}
