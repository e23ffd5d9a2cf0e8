package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqliteTimeFormat is the DATETIME layout used for all stored timestamps.
// Timestamps are always stored in UTC so string comparison orders correctly.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// FinancialRecord represents a row in the financial_records table: one
// normalized fetch result. Records are append-only; the agent never updates
// or deletes them outside of retention pruning.
type FinancialRecord struct {
	ID         int64     // Auto-incremented primary key
	Category   string    // Data category (e.g., "net_worth", "credit_report")
	Subject    string    // Phone-number handle the provider keys data by
	SessionID  string    // Provider session the fetch ran under
	Metrics    string    // JSON-encoded normalized metrics
	RawPayload string    // JSON-encoded raw provider payload
	StoredAt   time.Time // Timestamp when the record was persisted
}

// InsightRecord represents a row in the insights table: one generated
// analysis artifact. Append-only.
type InsightRecord struct {
	ID               int64     // Auto-incremented primary key
	Title            string    // Human-readable insight title
	Content          string    // Generated analysis text
	Kind             string    // Analysis kind (e.g., "portfolio_analysis")
	Confidence       float64   // Fixed per-kind confidence score in [0,1]
	SourceCategories string    // JSON-encoded list of source categories
	CreatedAt        time.Time // Timestamp when the insight was persisted
}

// Repository provides typed operations over the agent's two record kinds.
type Repository struct {
	db *Database
}

// NewRepository creates a Repository over the given database.
func NewRepository(db *Database) *Repository {
	return &Repository{db: db}
}

// InsertFinancialRecords persists a batch of records in one transaction.
// All-or-nothing: any failure rolls back the whole batch. Returns the
// number of records written.
func (r *Repository) InsertFinancialRecords(ctx context.Context, records []FinancialRecord) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO financial_records (
			category, subject, session_id, metrics, raw_payload, stored_at
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		storedAt := record.StoredAt
		if storedAt.IsZero() {
			storedAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			record.Category,
			record.Subject,
			record.SessionID,
			record.Metrics,
			record.RawPayload,
			storedAt.UTC().Format(sqliteTimeFormat),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s record: %w", record.Category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit record batch: %w", err)
	}

	return len(records), nil
}

// LatestByCategory returns the most recent record for one category, or nil
// when none exists.
func (r *Repository) LatestByCategory(ctx context.Context, subject, category string) (*FinancialRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	row := r.db.QueryRow(`
		SELECT id, category, subject, session_id,
		       COALESCE(metrics, ''), COALESCE(raw_payload, ''), stored_at
		FROM financial_records
		WHERE subject = ? AND category = ?
		ORDER BY stored_at DESC, id DESC
		LIMIT 1`, subject, category)

	record, err := scanFinancialRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest %s record: %w", category, err)
	}
	return record, nil
}

// LatestPerCategory returns the most recent record for every category that
// has at least one record stored for the subject.
func (r *Repository) LatestPerCategory(ctx context.Context, subject string) (map[string]FinancialRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	// Correlated MAX(id) picks the newest row per category; ids are
	// monotonic for append-only tables.
	rows, err := r.db.Query(`
		SELECT id, category, subject, session_id,
		       COALESCE(metrics, ''), COALESCE(raw_payload, ''), stored_at
		FROM financial_records
		WHERE subject = ? AND id IN (
			SELECT MAX(id) FROM financial_records WHERE subject = ? GROUP BY category
		)`, subject, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest records: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]FinancialRecord)
	for rows.Next() {
		record, err := scanFinancialRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan financial record: %w", err)
		}
		latest[record.Category] = *record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating financial records: %w", err)
	}

	return latest, nil
}

// CountRecordsSince returns how many records were stored for the subject
// after the given time.
func (r *Repository) CountRecordsSince(ctx context.Context, subject string, since time.Time) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM financial_records
		WHERE subject = ? AND stored_at > ?`,
		subject, since.UTC().Format(sqliteTimeFormat),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent records: %w", err)
	}
	return count, nil
}

// InsertInsights persists a batch of insights in one transaction.
// All-or-nothing, like InsertFinancialRecords.
func (r *Repository) InsertInsights(ctx context.Context, insights []InsightRecord) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if len(insights) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO insights (
			title, content, kind, confidence, source_categories, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insight insert: %w", err)
	}
	defer stmt.Close()

	for _, insight := range insights {
		createdAt := insight.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			insight.Title,
			insight.Content,
			insight.Kind,
			insight.Confidence,
			insight.SourceCategories,
			createdAt.UTC().Format(sqliteTimeFormat),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert %s insight: %w", insight.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insight batch: %w", err)
	}

	return len(insights), nil
}

// RecentInsights returns the most recent insights, newest first.
func (r *Repository) RecentInsights(ctx context.Context, limit int) ([]InsightRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryInsights(`
		SELECT id, title, content, kind, confidence,
		       COALESCE(source_categories, '[]'), created_at
		FROM insights
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
}

// InsightsByKind returns the most recent insights of one kind, newest first.
func (r *Repository) InsightsByKind(ctx context.Context, kind string, limit int) ([]InsightRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryInsights(`
		SELECT id, title, content, kind, confidence,
		       COALESCE(source_categories, '[]'), created_at
		FROM insights
		WHERE kind = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, kind, limit)
}

// CountInsights returns the total number of stored insights.
func (r *Repository) CountInsights(ctx context.Context) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM insights`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count insights: %w", err)
	}
	return count, nil
}

func (r *Repository) queryInsights(query string, args ...interface{}) ([]InsightRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	var insights []InsightRecord
	for rows.Next() {
		var rec InsightRecord
		var createdAt string

		err := rows.Scan(
			&rec.ID,
			&rec.Title,
			&rec.Content,
			&rec.Kind,
			&rec.Confidence,
			&rec.SourceCategories,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight row: %w", err)
		}

		rec.CreatedAt, _ = time.Parse(sqliteTimeFormat, createdAt)
		insights = append(insights, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating insight rows: %w", err)
	}

	return insights, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFinancialRecord(row rowScanner) (*FinancialRecord, error) {
	var rec FinancialRecord
	var storedAt string

	err := row.Scan(
		&rec.ID,
		&rec.Category,
		&rec.Subject,
		&rec.SessionID,
		&rec.Metrics,
		&rec.RawPayload,
		&storedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.StoredAt, _ = time.Parse(sqliteTimeFormat, storedAt)
	return &rec, nil
}
