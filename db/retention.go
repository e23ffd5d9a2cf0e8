package db

import (
	"context"
	"fmt"
	"time"
)

// RetentionResult contains statistics about a retention pruning pass.
type RetentionResult struct {
	// FinancialRecordsDeleted is the number of rows deleted from financial_records
	FinancialRecordsDeleted int64
	// InsightsDeleted is the number of rows deleted from insights
	InsightsDeleted int64
	// TotalDeleted is the sum of all deleted rows
	TotalDeleted int64
	// Duration is how long the pruning took
	Duration time.Duration
}

// retentionTables maps retention-managed tables to their timestamp column.
var retentionTables = []struct {
	name      string
	timestamp string
}{
	{"financial_records", "stored_at"},
	{"insights", "created_at"},
}

// Prune deletes rows older than retentionDays from both append-only tables.
// The deletions run in one transaction; a failure rolls back both.
//
// Example:
//
//	result, err := db.Prune(ctx, 90)
//	log.Printf("pruned %d rows", result.TotalDeleted)
func (d *Database) Prune(ctx context.Context, retentionDays int) (RetentionResult, error) {
	start := time.Now()
	result := RetentionResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays).UTC().Format(sqliteTimeFormat)

	tx, err := d.Begin()
	if err != nil {
		return result, fmt.Errorf("failed to begin retention transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range retentionTables {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", table.name, table.timestamp)
		res, err := tx.ExecContext(ctx, query, cutoff)
		if err != nil {
			return RetentionResult{}, fmt.Errorf("failed to prune %s: %w", table.name, err)
		}

		deleted, err := res.RowsAffected()
		if err != nil {
			return RetentionResult{}, fmt.Errorf("failed to count pruned rows in %s: %w", table.name, err)
		}

		switch table.name {
		case "financial_records":
			result.FinancialRecordsDeleted = deleted
		case "insights":
			result.InsightsDeleted = deleted
		}
		result.TotalDeleted += deleted
	}

	if err := tx.Commit(); err != nil {
		return RetentionResult{}, fmt.Errorf("failed to commit retention transaction: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}
