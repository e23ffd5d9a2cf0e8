package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// FinancialSummary is the latest-known headline figures for one subject,
// assembled from the newest record of each category.
type FinancialSummary struct {
	Subject        string    `json:"subject"`
	TotalNetWorth  float64   `json:"total_net_worth"`
	Currency       string    `json:"currency,omitempty"`
	CreditScore    int       `json:"credit_score"`
	EPFBalance     float64   `json:"epf_balance"`
	Categories     []string  `json:"categories"`
	LastCollection time.Time `json:"last_collection,omitzero"`
}

// InsightKindStat aggregates the stored insights of one kind.
type InsightKindStat struct {
	Kind          string  `json:"kind"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Summary assembles the latest financial headline figures for a subject.
// Categories without stored records simply leave their figures zero; a
// subject with no records at all yields an empty summary, not an error.
func (r *Repository) Summary(ctx context.Context, subject string) (*FinancialSummary, error) {
	latest, err := r.LatestPerCategory(ctx, subject)
	if err != nil {
		return nil, err
	}

	summary := &FinancialSummary{Subject: subject}
	for category, record := range latest {
		summary.Categories = append(summary.Categories, category)
		if record.StoredAt.After(summary.LastCollection) {
			summary.LastCollection = record.StoredAt
		}

		var metrics map[string]interface{}
		if err := json.Unmarshal([]byte(record.Metrics), &metrics); err != nil {
			continue
		}

		switch category {
		case "net_worth":
			summary.TotalNetWorth = floatMetric(metrics, "total_net_worth")
			if currency, ok := metrics["currency"].(string); ok {
				summary.Currency = currency
			}
		case "credit_report":
			summary.CreditScore = int(floatMetric(metrics, "credit_score"))
		case "epf_details":
			summary.EPFBalance = floatMetric(metrics, "current_balance")
		}
	}
	sort.Strings(summary.Categories)

	return summary, nil
}

// InsightStats returns count and average confidence per insight kind.
func (r *Repository) InsightStats(ctx context.Context) ([]InsightKindStat, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.Query(`
		SELECT kind, COUNT(*), AVG(confidence)
		FROM insights
		GROUP BY kind
		ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to query insight stats: %w", err)
	}
	defer rows.Close()

	var stats []InsightKindStat
	for rows.Next() {
		var stat InsightKindStat
		if err := rows.Scan(&stat.Kind, &stat.Count, &stat.AvgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan insight stat row: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating insight stat rows: %w", err)
	}

	return stats, nil
}

// floatMetric reads a numeric metric that JSON decoding may have produced
// as float64.
func floatMetric(metrics map[string]interface{}, key string) float64 {
	if v, ok := metrics[key].(float64); ok {
		return v
	}
	return 0
}
