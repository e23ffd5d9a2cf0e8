package fimcp

import (
	"encoding/json"
	"math"
	"testing"
)

func mustParse(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("failed to parse test payload: %v", err)
	}
	return payload
}

func TestExtractNetWorth(t *testing.T) {
	payload := mustParse(t, `{
		"netWorthResponse": {
			"totalNetWorthValue": {"currencyCode": "INR", "units": "2000000"},
			"assetValues": [
				{"netWorthAttribute": "SAVINGS_ACCOUNTS", "value": {"units": "500000"}},
				{"netWorthAttribute": "MUTUAL_FUND", "value": {"units": "1500000"}}
			]
		}
	}`)

	metrics := ExtractNetWorth(payload)

	if got := metrics["total_assets"].(float64); got != 2000000 {
		t.Errorf("total_assets = %v, want 2000000", got)
	}
	if got := metrics["total_net_worth"].(float64); got != 2000000 {
		t.Errorf("total_net_worth = %v, want 2000000", got)
	}

	assets := metrics["assets"].(map[string]float64)
	if assets["SAVINGS_ACCOUNTS"] != 500000 || assets["MUTUAL_FUND"] != 1500000 {
		t.Errorf("assets = %v, want SAVINGS_ACCOUNTS=500000 MUTUAL_FUND=1500000", assets)
	}

	// Per-type values must sum to the reported total.
	sum := 0.0
	for _, v := range assets {
		sum += v
	}
	if sum != metrics["total_assets"].(float64) {
		t.Errorf("sum of asset values = %v, total_assets = %v", sum, metrics["total_assets"])
	}
}

func TestExtractNetWorthMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty object", `{}`},
		{"wrong type", `{"netWorthResponse": "not-an-object"}`},
		{"missing values", `{"netWorthResponse": {"assetValues": [{"netWorthAttribute": "GOLD"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := ExtractNetWorth(mustParse(t, tt.payload))
			if got := metrics["total_assets"].(float64); got != 0 {
				t.Errorf("total_assets = %v, want 0 for malformed payload", got)
			}
			if got := metrics["total_liabilities"].(float64); got != 0 {
				t.Errorf("total_liabilities = %v, want 0 for malformed payload", got)
			}
		})
	}
}

func TestAssetAllocation(t *testing.T) {
	assets := map[string]float64{
		"SAVINGS_ACCOUNTS": 500000,
		"MUTUAL_FUND":      1500000,
	}

	allocation := AssetAllocation(assets, 2000000)

	if got := allocation["SAVINGS_ACCOUNTS"].Percentage; got != 25.00 {
		t.Errorf("SAVINGS_ACCOUNTS percentage = %v, want 25.00", got)
	}
	if got := allocation["MUTUAL_FUND"].Percentage; got != 75.00 {
		t.Errorf("MUTUAL_FUND percentage = %v, want 75.00", got)
	}

	total := 0.0
	for _, a := range allocation {
		total += a.Percentage
	}
	if math.Abs(total-100) > 0.01 {
		t.Errorf("percentages sum to %v, want 100 within rounding tolerance", total)
	}
}

func TestAssetAllocationZeroTotal(t *testing.T) {
	assets := map[string]float64{
		"SAVINGS_ACCOUNTS": 0,
		"MUTUAL_FUND":      0,
	}

	allocation := AssetAllocation(assets, 0)

	for assetType, a := range allocation {
		if a.Percentage != 0 {
			t.Errorf("percentage for %s = %v, want exactly 0 when totalAssets is 0", assetType, a.Percentage)
		}
	}
}

func TestExtractBankTransactions(t *testing.T) {
	payload := mustParse(t, `{
		"transactions": [
			{"amount": {"units": "1200"}},
			{"amount": {"units": "-800"}},
			{"amount": {"units": "500"}}
		]
	}`)

	metrics := ExtractBankTransactions(payload)

	if got := metrics["transaction_count"].(int); got != 3 {
		t.Errorf("transaction_count = %v, want 3", got)
	}
	// Volume uses absolute values: 1200 + 800 + 500.
	if got := metrics["total_amount"].(float64); got != 2500 {
		t.Errorf("total_amount = %v, want 2500", got)
	}
}

func TestExtractEPF(t *testing.T) {
	payload := mustParse(t, `{
		"uanAccounts": [
			{"rawDetails": {"overall_pf_balance": {
				"current_pf_balance": "450000",
				"employee_contribution": "200000",
				"employer_contribution": "180000"
			}}}
		]
	}`)

	metrics := ExtractEPF(payload)

	if got := metrics["current_balance"].(float64); got != 450000 {
		t.Errorf("current_balance = %v, want 450000", got)
	}
	if got := metrics["employee_contribution"].(float64); got != 200000 {
		t.Errorf("employee_contribution = %v, want 200000", got)
	}
	if got := metrics["employer_contribution"].(float64); got != 180000 {
		t.Errorf("employer_contribution = %v, want 180000", got)
	}
}

func TestExtractEPFDefaults(t *testing.T) {
	metrics := ExtractEPF(mustParse(t, `{"uanAccounts": []}`))
	if got := metrics["current_balance"].(float64); got != 0 {
		t.Errorf("current_balance = %v, want 0 when no accounts present", got)
	}
}

func TestExtractCreditReport(t *testing.T) {
	payload := mustParse(t, `{
		"creditReports": [
			{"creditReportData": {
				"score": {"bureauScore": "746"},
				"creditAccount": {"creditAccountSummary": {
					"account": {"creditAccountTotal": "8"},
					"totalOutstandingBalance": {
						"outstandingBalanceSecured": "3500000",
						"outstandingBalanceUnSecured": "120000"
					}
				}}
			}}
		]
	}`)

	metrics := ExtractCreditReport(payload)

	if got := metrics["credit_score"].(int); got != 746 {
		t.Errorf("credit_score = %v, want 746", got)
	}
	if got := metrics["account_count"].(int); got != 8 {
		t.Errorf("account_count = %v, want 8", got)
	}
	if got := metrics["outstanding_secured"].(float64); got != 3500000 {
		t.Errorf("outstanding_secured = %v, want 3500000", got)
	}
	if got := metrics["outstanding_unsecured"].(float64); got != 120000 {
		t.Errorf("outstanding_unsecured = %v, want 120000", got)
	}
}

func TestExtractCreditReportDefaults(t *testing.T) {
	metrics := ExtractCreditReport(mustParse(t, `{}`))
	if got := metrics["credit_score"].(int); got != 0 {
		t.Errorf("credit_score = %v, want 0 for empty payload", got)
	}
}

func TestExtractDispatch(t *testing.T) {
	tests := []struct {
		category Category
		payload  string
		key      string
	}{
		{CategoryNetWorth, `{}`, "total_assets"},
		{CategoryBankTxns, `{}`, "transaction_count"},
		{CategoryMutualFunds, `{"funds": [{}, {}]}`, "fund_count"},
		{CategoryEPF, `{}`, "current_balance"},
		{CategoryCreditReport, `{}`, "credit_score"},
		{CategoryStockTxns, `{"stockTransactions": [{}]}`, "transaction_count"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			metrics := Extract(tt.category, mustParse(t, tt.payload))
			if _, ok := metrics[tt.key]; !ok {
				t.Errorf("Extract(%s) missing key %q", tt.category, tt.key)
			}
		})
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want float64
	}{
		{"float", 42.5, 42.5},
		{"string units", "500000", 500000},
		{"garbage string", "not-a-number", 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toFloat(tt.in); got != tt.want {
				t.Errorf("toFloat(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
