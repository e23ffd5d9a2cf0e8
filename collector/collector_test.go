package collector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fin_backend/db"
	"fin_backend/fimcp"
	"fin_backend/logging"
	"fin_backend/quota"

	"go.uber.org/zap/zapcore"
)

// testSchema mirrors db/migrations/0001_initial_schema.up.sql.
const testSchema = `
CREATE TABLE financial_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category TEXT NOT NULL,
    subject TEXT NOT NULL,
    session_id TEXT NOT NULL,
    metrics TEXT,
    raw_payload TEXT,
    stored_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE insights (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    source_categories TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

func newTestLogger() *logging.Logger {
	core := logging.NewMultiCoreWithWriters(
		zapcore.ErrorLevel,
		zapcore.AddSync(io.Discard),
		zapcore.AddSync(io.Discard),
		false,
	)
	return logging.NewLoggerWithCore(core, false)
}

func newTestDatabase(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.NewDatabase(filepath.Join(t.TempDir(), "collector_test.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(testSchema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return database
}

func newTestProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"token":     "test-token",
			"sessionId": "mcp-session-test",
		})
	})
	mux.HandleFunc("/mcp/test", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"netWorthResponse": {"assetValues": [{"netWorthAttribute": "SAVINGS_ACCOUNTS", "value": {"units": "500000"}}]}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestFiClient(t *testing.T, baseURL string) *fimcp.Client {
	t.Helper()
	client, err := fimcp.NewClient(fimcp.ClientConfig{
		BaseURL:    baseURL,
		Subject:    "2222222222",
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	}, newTestLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// fakeQuota is a QuotaChecker with a fixed answer.
type fakeQuota struct {
	available bool
}

func (f *fakeQuota) CheckAvailable(cost int) quota.Check {
	return quota.Check{
		Available:       f.available,
		Requested:       cost,
		DailyRemaining:  10,
		HourlyRemaining: 10,
	}
}

// fakeAnalyzer records GenerateInsights invocations.
type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	forced []bool
}

func (f *fakeAnalyzer) GenerateInsights(ctx context.Context, force bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.forced = append(f.forced, force)
	return 4, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCollector(t *testing.T, database *db.Database, client *fimcp.Client, quotaOK bool, analyzer Analyzer) (*Collector, *RunStats) {
	t.Helper()

	repo := db.NewRepository(database)
	stats := NewRunStats()
	trigger := NewTriggerPolicy(TriggerConfig{
		QuotaCost:       3,
		FreshnessWindow: 2 * time.Hour,
		RecencyWindow:   time.Hour,
	}, &fakeQuota{available: quotaOK}, repo, stats, "2222222222", newTestLogger())

	c := New(Config{
		Interval:     time.Hour,
		TickInterval: 10 * time.Millisecond,
		StopTimeout:  time.Second,
	}, client, database, repo, stats, trigger, analyzer, newTestLogger())

	return c, stats
}

func TestCollectPersistsAndTriggers(t *testing.T) {
	server := newTestProvider(t)
	database := newTestDatabase(t)
	client := newTestFiClient(t, server.URL)
	analyzer := &fakeAnalyzer{}

	c, stats := newTestCollector(t, database, client, true, analyzer)

	result := c.Collect(context.Background())
	if !result.Success {
		t.Fatalf("Collect() failed: %s", result.Error)
	}
	if result.RecordsStored != len(fimcp.AllCategories()) {
		t.Errorf("RecordsStored = %d, want %d", result.RecordsStored, len(fimcp.AllCategories()))
	}

	snapshot := stats.Snapshot()
	if snapshot.TotalRuns != 1 || snapshot.SuccessfulRuns != 1 {
		t.Errorf("stats = %+v, want 1 total 1 successful", snapshot)
	}
	if snapshot.TotalRuns != snapshot.SuccessfulRuns+snapshot.FailedRuns {
		t.Errorf("stats invariant broken: %d != %d + %d",
			snapshot.TotalRuns, snapshot.SuccessfulRuns, snapshot.FailedRuns)
	}

	if analyzer.callCount() != 1 {
		t.Errorf("analyzer called %d times, want 1 (trigger should fire)", analyzer.callCount())
	}
}

func TestCollectPersistenceFailureFailsRun(t *testing.T) {
	server := newTestProvider(t)
	database := newTestDatabase(t)
	client := newTestFiClient(t, server.URL)
	analyzer := &fakeAnalyzer{}

	c, stats := newTestCollector(t, database, client, true, analyzer)

	// Drop the table so the batch insert fails after the fetches succeed.
	if _, err := database.Exec(`DROP TABLE financial_records`); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	result := c.Collect(context.Background())
	if result.Success {
		t.Fatal("Collect() succeeded despite persistence failure")
	}

	snapshot := stats.Snapshot()
	if snapshot.FailedRuns != 1 {
		t.Errorf("FailedRuns = %d, want 1", snapshot.FailedRuns)
	}
	if analyzer.callCount() != 0 {
		t.Errorf("analyzer called %d times after failed run, want 0", analyzer.callCount())
	}
}

func TestTriggerSkipsWithinFreshnessWindow(t *testing.T) {
	server := newTestProvider(t)
	database := newTestDatabase(t)
	client := newTestFiClient(t, server.URL)
	analyzer := &fakeAnalyzer{}

	c, stats := newTestCollector(t, database, client, true, analyzer)

	// First collection triggers an analysis.
	c.Collect(context.Background())
	stats.RecordAnalysis(time.Now())

	// Second collection inside the freshness window must not.
	c.Collect(context.Background())

	if analyzer.callCount() != 1 {
		t.Errorf("analyzer called %d times, want 1 (second trigger inside freshness window)", analyzer.callCount())
	}
}

func TestTriggerSkipsWhenQuotaExhausted(t *testing.T) {
	server := newTestProvider(t)
	database := newTestDatabase(t)
	client := newTestFiClient(t, server.URL)
	analyzer := &fakeAnalyzer{}

	c, _ := newTestCollector(t, database, client, false, analyzer)

	c.Collect(context.Background())

	if analyzer.callCount() != 0 {
		t.Errorf("analyzer called %d times with quota exhausted, want 0", analyzer.callCount())
	}
}

func TestTriggerSkipsWithoutFreshRecords(t *testing.T) {
	database := newTestDatabase(t)
	repo := db.NewRepository(database)
	stats := NewRunStats()
	policy := NewTriggerPolicy(TriggerConfig{
		QuotaCost:       3,
		FreshnessWindow: 2 * time.Hour,
		RecencyWindow:   time.Hour,
	}, &fakeQuota{available: true}, repo, stats, "2222222222", newTestLogger())

	if policy.ShouldTriggerAnalysis(context.Background()) {
		t.Error("ShouldTriggerAnalysis() = true with empty store, want false")
	}
}

func TestStartIdempotentAndStopClears(t *testing.T) {
	server := newTestProvider(t)
	database := newTestDatabase(t)
	client := newTestFiClient(t, server.URL)

	c, _ := newTestCollector(t, database, client, false, nil)

	c.Start()
	if !c.IsRunning() {
		t.Fatal("IsRunning() = false after Start()")
	}

	c.mu.Lock()
	firstStop := c.stopCh
	c.mu.Unlock()

	// Second Start is a no-op; the loop and its channels are unchanged.
	c.Start()
	c.mu.Lock()
	secondStop := c.stopCh
	c.mu.Unlock()
	if firstStop != secondStop {
		t.Error("second Start() replaced the polling loop, want no-op")
	}

	c.Stop()
	if c.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}

	c.mu.Lock()
	nextRun := c.nextRun
	c.mu.Unlock()
	if !nextRun.IsZero() {
		t.Error("Stop() left a residual job registration")
	}

	// Stop on a stopped collector is also a no-op.
	c.Stop()
}

func TestScheduledRunFires(t *testing.T) {
	server := newTestProvider(t)
	database := newTestDatabase(t)
	client := newTestFiClient(t, server.URL)

	repo := db.NewRepository(database)
	stats := NewRunStats()
	trigger := NewTriggerPolicy(TriggerConfig{
		QuotaCost:       3,
		FreshnessWindow: 2 * time.Hour,
		RecencyWindow:   time.Hour,
	}, &fakeQuota{available: false}, repo, stats, "2222222222", newTestLogger())

	c := New(Config{
		Interval:     20 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
		StopTimeout:  time.Second,
	}, client, database, repo, stats, trigger, nil, newTestLogger())

	c.Start()
	defer c.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if stats.Snapshot().TotalRuns >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduled run never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunStatsInvariantUnderConcurrency(t *testing.T) {
	stats := NewRunStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			stats.RecordRun(n%3 != 0, []string{"net_worth"}, time.Now())
		}(i)
	}

	// Snapshots taken mid-flight must always satisfy the invariant.
	for i := 0; i < 20; i++ {
		s := stats.Snapshot()
		if s.TotalRuns != s.SuccessfulRuns+s.FailedRuns {
			t.Fatalf("invariant broken mid-flight: %d != %d + %d",
				s.TotalRuns, s.SuccessfulRuns, s.FailedRuns)
		}
	}
	wg.Wait()

	s := stats.Snapshot()
	if s.TotalRuns != 50 {
		t.Errorf("TotalRuns = %d, want 50", s.TotalRuns)
	}
	if s.TotalRuns != s.SuccessfulRuns+s.FailedRuns {
		t.Errorf("invariant broken: %d != %d + %d", s.TotalRuns, s.SuccessfulRuns, s.FailedRuns)
	}
}
