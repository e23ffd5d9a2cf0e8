package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// testSchemaUp mirrors the production schema from 0001_initial_schema.up.sql.
const testSchemaUp = `
CREATE TABLE financial_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    category TEXT NOT NULL,
    subject TEXT NOT NULL,
    session_id TEXT NOT NULL,
    metrics TEXT,
    raw_payload TEXT,
    stored_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_financial_records_category ON financial_records(category);
CREATE INDEX idx_financial_records_subject ON financial_records(subject);
CREATE INDEX idx_financial_records_stored_at ON financial_records(stored_at);

CREATE TABLE insights (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    kind TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 0,
    source_categories TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_insights_kind ON insights(kind);
CREATE INDEX idx_insights_created_at ON insights(created_at);
`

// newTestDatabase creates a migrated database in a temp directory.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	database, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(testSchemaUp); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return database
}

func testRecord(category string, storedAt time.Time) FinancialRecord {
	return FinancialRecord{
		Category:   category,
		Subject:    "2222222222",
		SessionID:  "mcp-session-test",
		Metrics:    `{"total_assets": 2000000}`,
		RawPayload: `{}`,
		StoredAt:   storedAt,
	}
}

func TestInsertFinancialRecordsBatch(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))
	ctx := context.Background()

	now := time.Now()
	records := []FinancialRecord{
		testRecord("net_worth", now),
		testRecord("credit_report", now),
		testRecord("epf_details", now),
	}

	stored, err := repo.InsertFinancialRecords(ctx, records)
	if err != nil {
		t.Fatalf("InsertFinancialRecords() error = %v", err)
	}
	if stored != 3 {
		t.Errorf("stored = %d, want 3", stored)
	}

	count, err := repo.CountRecordsSince(ctx, "2222222222", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountRecordsSince() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountRecordsSince() = %d, want 3", count)
	}
}

func TestInsertFinancialRecordsEmpty(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))

	stored, err := repo.InsertFinancialRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("InsertFinancialRecords(nil) error = %v", err)
	}
	if stored != 0 {
		t.Errorf("stored = %d, want 0", stored)
	}
}

func TestLatestByCategory(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))
	ctx := context.Background()

	older := testRecord("net_worth", time.Now().Add(-2*time.Hour))
	older.Metrics = `{"total_assets": 1000000}`
	newer := testRecord("net_worth", time.Now())
	newer.Metrics = `{"total_assets": 2000000}`

	if _, err := repo.InsertFinancialRecords(ctx, []FinancialRecord{older, newer}); err != nil {
		t.Fatalf("InsertFinancialRecords() error = %v", err)
	}

	latest, err := repo.LatestByCategory(ctx, "2222222222", "net_worth")
	if err != nil {
		t.Fatalf("LatestByCategory() error = %v", err)
	}
	if latest == nil {
		t.Fatal("LatestByCategory() = nil, want newest record")
	}
	if latest.Metrics != `{"total_assets": 2000000}` {
		t.Errorf("latest metrics = %s, want the newer record", latest.Metrics)
	}
}

func TestLatestByCategoryMissing(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))

	latest, err := repo.LatestByCategory(context.Background(), "2222222222", "credit_report")
	if err != nil {
		t.Fatalf("LatestByCategory() error = %v", err)
	}
	if latest != nil {
		t.Errorf("LatestByCategory() = %+v, want nil when no records exist", latest)
	}
}

func TestLatestPerCategory(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))
	ctx := context.Background()

	now := time.Now()
	records := []FinancialRecord{
		testRecord("net_worth", now.Add(-time.Hour)),
		testRecord("net_worth", now),
		testRecord("credit_report", now),
	}
	if _, err := repo.InsertFinancialRecords(ctx, records); err != nil {
		t.Fatalf("InsertFinancialRecords() error = %v", err)
	}

	latest, err := repo.LatestPerCategory(ctx, "2222222222")
	if err != nil {
		t.Fatalf("LatestPerCategory() error = %v", err)
	}

	if len(latest) != 2 {
		t.Fatalf("LatestPerCategory() returned %d categories, want 2", len(latest))
	}
	if _, ok := latest["net_worth"]; !ok {
		t.Error("missing net_worth in latest map")
	}
	if _, ok := latest["credit_report"]; !ok {
		t.Error("missing credit_report in latest map")
	}
}

func TestCountRecordsSince(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))
	ctx := context.Background()

	records := []FinancialRecord{
		testRecord("net_worth", time.Now().Add(-3*time.Hour)),
		testRecord("credit_report", time.Now().Add(-10*time.Minute)),
	}
	if _, err := repo.InsertFinancialRecords(ctx, records); err != nil {
		t.Fatalf("InsertFinancialRecords() error = %v", err)
	}

	count, err := repo.CountRecordsSince(ctx, "2222222222", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountRecordsSince() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountRecordsSince(1h) = %d, want 1", count)
	}
}

func TestInsertAndQueryInsights(t *testing.T) {
	repo := NewRepository(newTestDatabase(t))
	ctx := context.Background()

	insights := []InsightRecord{
		{
			Title:            "Portfolio Composition Analysis",
			Content:          "Your portfolio is concentrated in mutual funds.",
			Kind:             "portfolio_analysis",
			Confidence:       0.85,
			SourceCategories: `["net_worth"]`,
		},
		{
			Title:            "Credit Risk Assessment",
			Content:          "Credit score is healthy.",
			Kind:             "risk_assessment",
			Confidence:       0.90,
			SourceCategories: `["credit_report"]`,
		},
	}

	stored, err := repo.InsertInsights(ctx, insights)
	if err != nil {
		t.Fatalf("InsertInsights() error = %v", err)
	}
	if stored != 2 {
		t.Errorf("stored = %d, want 2", stored)
	}

	recent, err := repo.RecentInsights(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInsights() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentInsights() returned %d, want 2", len(recent))
	}

	byKind, err := repo.InsightsByKind(ctx, "risk_assessment", 10)
	if err != nil {
		t.Fatalf("InsightsByKind() error = %v", err)
	}
	if len(byKind) != 1 {
		t.Fatalf("InsightsByKind(risk_assessment) returned %d, want 1", len(byKind))
	}
	if byKind[0].Confidence != 0.90 {
		t.Errorf("confidence = %v, want 0.90", byKind[0].Confidence)
	}

	total, err := repo.CountInsights(ctx)
	if err != nil {
		t.Fatalf("CountInsights() error = %v", err)
	}
	if total != 2 {
		t.Errorf("CountInsights() = %d, want 2", total)
	}
}

func TestPrune(t *testing.T) {
	database := newTestDatabase(t)
	repo := NewRepository(database)
	ctx := context.Background()

	records := []FinancialRecord{
		testRecord("net_worth", time.Now().AddDate(0, 0, -120)),
		testRecord("net_worth", time.Now()),
	}
	if _, err := repo.InsertFinancialRecords(ctx, records); err != nil {
		t.Fatalf("InsertFinancialRecords() error = %v", err)
	}

	result, err := database.Prune(ctx, 90)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if result.FinancialRecordsDeleted != 1 {
		t.Errorf("FinancialRecordsDeleted = %d, want 1", result.FinancialRecordsDeleted)
	}

	count, err := repo.CountRecordsSince(ctx, "2222222222", time.Time{})
	if err != nil {
		t.Fatalf("CountRecordsSince() error = %v", err)
	}
	if count != 1 {
		t.Errorf("records remaining = %d, want 1", count)
	}
}

func TestPruneNegativeRetention(t *testing.T) {
	database := newTestDatabase(t)

	if _, err := database.Prune(context.Background(), -1); err == nil {
		t.Fatal("Prune(-1) error = nil, want validation error")
	}
}
