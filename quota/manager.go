// Package quota tracks generation-request usage against hourly and daily
// budgets. Usage is persisted to a small JSON file so limits survive
// process restarts.
package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"fin_backend/logging"

	"go.uber.org/zap"
)

const (
	dayKeyFormat  = "2006-01-02"
	hourKeyFormat = "2006-01-02-15"

	// History kept in the ledger file. Older buckets are dropped on every
	// check to keep the file small.
	dailyHistoryDays   = 7
	hourlyHistoryHours = 24
)

// Check is the result of a quota availability check.
type Check struct {
	Available       bool      `json:"available"`
	Requested       int       `json:"requested"`
	DailyUsed       int       `json:"daily_used"`
	DailyLimit      int       `json:"daily_limit"`
	DailyRemaining  int       `json:"daily_remaining"`
	HourlyUsed      int       `json:"hourly_used"`
	HourlyLimit     int       `json:"hourly_limit"`
	HourlyRemaining int       `json:"hourly_remaining"`
	ResetAt         time.Time `json:"reset_at"`
}

// Remaining returns the tighter of the two remaining budgets.
func (c Check) Remaining() int {
	if c.HourlyRemaining < c.DailyRemaining {
		return c.HourlyRemaining
	}
	return c.DailyRemaining
}

// ledger is the JSON structure persisted to disk.
type ledger struct {
	DailyUsage  map[string]int `json:"daily_usage"`
	HourlyUsage map[string]int `json:"hourly_usage"`
	LastUsage   string         `json:"last_usage,omitempty"`
}

// Manager enforces daily and hourly request budgets.
//
// Thread-Safety: Manager is safe for concurrent use; all ledger access is
// serialized by an internal mutex.
type Manager struct {
	path        string
	dailyLimit  int
	hourlyLimit int
	logger      *logging.Logger

	// now is swappable for tests.
	now func() time.Time

	mu     sync.Mutex
	ledger ledger
}

// NewManager creates a Manager backed by the JSON file at path. A missing
// or unreadable file starts an empty ledger rather than failing; budget
// enforcement should not be blocked by a corrupt state file.
func NewManager(path string, dailyLimit, hourlyLimit int, logger *logging.Logger) *Manager {
	m := &Manager{
		path:        path,
		dailyLimit:  dailyLimit,
		hourlyLimit: hourlyLimit,
		logger:      logger.Named("quota"),
		now:         time.Now,
		ledger: ledger{
			DailyUsage:  map[string]int{},
			HourlyUsage: map[string]int{},
		},
	}
	m.load()
	return m
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("could not load quota ledger, starting fresh",
				zap.String("path", m.path),
				zap.String("error", err.Error()),
			)
		}
		return
	}

	var loaded ledger
	if err := json.Unmarshal(data, &loaded); err != nil {
		m.logger.Warn("quota ledger malformed, starting fresh",
			zap.String("path", m.path),
			zap.String("error", err.Error()),
		)
		return
	}

	if loaded.DailyUsage == nil {
		loaded.DailyUsage = map[string]int{}
	}
	if loaded.HourlyUsage == nil {
		loaded.HourlyUsage = map[string]int{}
	}
	m.ledger = loaded
}

// save persists the ledger. Caller holds m.mu.
func (m *Manager) save() {
	data, err := json.MarshalIndent(m.ledger, "", "  ")
	if err != nil {
		m.logger.Error("could not encode quota ledger", zap.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		m.logger.Error("could not save quota ledger",
			zap.String("path", m.path),
			zap.String("error", err.Error()),
		)
	}
}

// cleanup drops usage buckets outside the history windows. Caller holds m.mu.
func (m *Manager) cleanup(now time.Time) {
	dayCutoff := now.AddDate(0, 0, -dailyHistoryDays)
	for key := range m.ledger.DailyUsage {
		if t, err := time.ParseInLocation(dayKeyFormat, key, now.Location()); err != nil || t.Before(dayCutoff) {
			delete(m.ledger.DailyUsage, key)
		}
	}

	hourCutoff := now.Add(-hourlyHistoryHours * time.Hour)
	for key := range m.ledger.HourlyUsage {
		if t, err := time.ParseInLocation(hourKeyFormat, key, now.Location()); err != nil || t.Before(hourCutoff) {
			delete(m.ledger.HourlyUsage, key)
		}
	}
}

// CheckAvailable reports whether cost units can be spent without exceeding
// either budget. It does not reserve the units; pair with Record after the
// spend succeeds.
func (m *Manager) CheckAvailable(cost int) Check {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.cleanup(now)

	dailyUsed := m.ledger.DailyUsage[now.Format(dayKeyFormat)]
	hourlyUsed := m.ledger.HourlyUsage[now.Format(hourKeyFormat)]

	check := Check{
		Requested:       cost,
		DailyUsed:       dailyUsed,
		DailyLimit:      m.dailyLimit,
		DailyRemaining:  m.dailyLimit - dailyUsed,
		HourlyUsed:      hourlyUsed,
		HourlyLimit:     m.hourlyLimit,
		HourlyRemaining: m.hourlyLimit - hourlyUsed,
	}
	check.Available = check.DailyRemaining >= cost && check.HourlyRemaining >= cost

	// The next relief point: top of the next hour if the hourly budget is
	// the binding constraint, midnight otherwise.
	nextHour := now.Truncate(time.Hour).Add(time.Hour)
	if check.HourlyRemaining < cost {
		check.ResetAt = nextHour
	} else {
		year, month, day := now.Date()
		check.ResetAt = time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	}

	return check
}

// Record charges cost units against the current hour and day buckets and
// persists the ledger.
func (m *Manager) Record(cost int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dayKey := now.Format(dayKeyFormat)
	hourKey := now.Format(hourKeyFormat)

	m.ledger.DailyUsage[dayKey] += cost
	m.ledger.HourlyUsage[hourKey] += cost
	m.ledger.LastUsage = now.Format(time.RFC3339)
	m.save()

	m.logger.Info("recorded quota usage",
		zap.Int("cost", cost),
		zap.String("daily", fmt.Sprintf("%d/%d", m.ledger.DailyUsage[dayKey], m.dailyLimit)),
		zap.String("hourly", fmt.Sprintf("%d/%d", m.ledger.HourlyUsage[hourKey], m.hourlyLimit)),
	)
}

// Usage returns the current consumption without checking a cost.
func (m *Manager) Usage() Check {
	return m.CheckAvailable(0)
}
