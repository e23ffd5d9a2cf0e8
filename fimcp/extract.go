package fimcp

import (
	"math"
	"strconv"
)

// Extract normalizes a raw provider payload into the metrics map for the
// given category. A structurally missing key yields a default-valued metric
// rather than a fault, so a malformed payload degrades the signal without
// aborting the pipeline.
func Extract(category Category, payload map[string]interface{}) map[string]interface{} {
	switch category {
	case CategoryNetWorth:
		return ExtractNetWorth(payload)
	case CategoryBankTxns:
		return ExtractBankTransactions(payload)
	case CategoryMutualFunds:
		return ExtractMutualFunds(payload)
	case CategoryEPF:
		return ExtractEPF(payload)
	case CategoryCreditReport:
		return ExtractCreditReport(payload)
	case CategoryStockTxns:
		return ExtractStockTransactions(payload)
	default:
		return map[string]interface{}{}
	}
}

// Allocation is the per-asset-type slice of a portfolio.
type Allocation struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// ExtractNetWorth reads asset and liability line items and computes
// per-type totals, grand totals, and the total net worth figure.
func ExtractNetWorth(payload map[string]interface{}) map[string]interface{} {
	metrics := map[string]interface{}{
		"total_net_worth":   0.0,
		"currency":          "INR",
		"assets":            map[string]float64{},
		"total_assets":      0.0,
		"liabilities":       map[string]float64{},
		"total_liabilities": 0.0,
	}

	nw := asMap(payload["netWorthResponse"])
	if nw == nil {
		return metrics
	}

	if total := asMap(nw["totalNetWorthValue"]); total != nil {
		metrics["total_net_worth"] = toFloat(total["units"])
		if currency, ok := total["currencyCode"].(string); ok && currency != "" {
			metrics["currency"] = currency
		}
	}

	assets, totalAssets := sumLineItems(nw["assetValues"])
	metrics["assets"] = assets
	metrics["total_assets"] = totalAssets

	liabilities, totalLiabilities := sumLineItems(nw["liabilityValues"])
	metrics["liabilities"] = liabilities
	metrics["total_liabilities"] = totalLiabilities

	return metrics
}

// sumLineItems folds a list of {netWorthAttribute, value:{units}} entries
// into a per-type map and a grand total.
func sumLineItems(raw interface{}) (map[string]float64, float64) {
	byType := map[string]float64{}
	total := 0.0

	for _, entry := range asSlice(raw) {
		item := asMap(entry)
		if item == nil {
			continue
		}
		attribute, _ := item["netWorthAttribute"].(string)
		if attribute == "" {
			continue
		}
		value := toFloat(asMap(item["value"])["units"])
		byType[attribute] += value
		total += value
	}
	return byType, total
}

// AssetAllocation computes the percentage allocation per asset type,
// rounded to 2 decimal places. When totalAssets is zero every percentage is
// exactly zero; there is no division fault path.
func AssetAllocation(assets map[string]float64, totalAssets float64) map[string]Allocation {
	allocation := make(map[string]Allocation, len(assets))
	for assetType, value := range assets {
		percentage := 0.0
		if totalAssets > 0 {
			percentage = round2(value / totalAssets * 100)
		}
		allocation[assetType] = Allocation{
			Value:      value,
			Percentage: percentage,
		}
	}
	return allocation
}

// ExtractBankTransactions counts transactions and sums abs(amount) as a
// total-volume metric. Signed direction is discarded for this aggregate.
func ExtractBankTransactions(payload map[string]interface{}) map[string]interface{} {
	metrics := map[string]interface{}{
		"transaction_count": 0,
		"total_amount":      0.0,
	}

	transactions := asSlice(payload["transactions"])
	metrics["transaction_count"] = len(transactions)

	total := 0.0
	for _, entry := range transactions {
		txn := asMap(entry)
		if txn == nil {
			continue
		}
		total += math.Abs(toFloat(asMap(txn["amount"])["units"]))
	}
	metrics["total_amount"] = total

	return metrics
}

// ExtractMutualFunds counts distinct fund entries.
func ExtractMutualFunds(payload map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"fund_count": len(asSlice(payload["funds"])),
	}
}

// ExtractEPF pulls the current balance and both contribution figures from
// the first UAN account's overall balance block. Absent fields default to 0.
func ExtractEPF(payload map[string]interface{}) map[string]interface{} {
	metrics := map[string]interface{}{
		"current_balance":       0.0,
		"employee_contribution": 0.0,
		"employer_contribution": 0.0,
	}

	accounts := asSlice(payload["uanAccounts"])
	if len(accounts) == 0 {
		return metrics
	}

	balance := asMap(asMap(asMap(accounts[0])["rawDetails"])["overall_pf_balance"])
	if balance == nil {
		return metrics
	}

	metrics["current_balance"] = toFloat(balance["current_pf_balance"])
	metrics["employee_contribution"] = toFloat(balance["employee_contribution"])
	metrics["employer_contribution"] = toFloat(balance["employer_contribution"])
	return metrics
}

// ExtractCreditReport pulls the bureau score, total account count, and the
// outstanding balance split into secured/unsecured. Absent fields default
// to 0.
func ExtractCreditReport(payload map[string]interface{}) map[string]interface{} {
	metrics := map[string]interface{}{
		"credit_score":          0,
		"account_count":         0,
		"outstanding_secured":   0.0,
		"outstanding_unsecured": 0.0,
	}

	reports := asSlice(payload["creditReports"])
	if len(reports) == 0 {
		return metrics
	}

	report := asMap(asMap(reports[0])["creditReportData"])
	if report == nil {
		return metrics
	}

	if score := asMap(report["score"]); score != nil {
		metrics["credit_score"] = int(toFloat(score["bureauScore"]))
	}

	summary := asMap(asMap(report["creditAccount"])["creditAccountSummary"])
	if summary == nil {
		return metrics
	}

	if account := asMap(summary["account"]); account != nil {
		metrics["account_count"] = int(toFloat(account["creditAccountTotal"]))
	}

	if balance := asMap(summary["totalOutstandingBalance"]); balance != nil {
		metrics["outstanding_secured"] = toFloat(balance["outstandingBalanceSecured"])
		metrics["outstanding_unsecured"] = toFloat(balance["outstandingBalanceUnSecured"])
	}

	return metrics
}

// ExtractStockTransactions counts stock transaction entries.
func ExtractStockTransactions(payload map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"transaction_count": len(asSlice(payload["stockTransactions"])),
	}
}

// asMap returns v as a JSON object, or nil when v is anything else.
// Indexing a nil map is safe, which keeps nested lookups single-expression.
func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// asSlice returns v as a JSON array, or nil.
func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

// toFloat coerces a JSON value to float64. The provider serializes numeric
// units as strings ("500000"), so both forms are accepted; anything
// unparseable is 0.
func toFloat(v interface{}) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case string:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return 0
}

// round2 rounds to 2 decimal places.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
