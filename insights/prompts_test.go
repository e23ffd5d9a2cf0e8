package insights

import (
	"strings"
	"testing"
)

func specForKind(t *testing.T, kind Kind) analysisSpec {
	t.Helper()
	for _, spec := range analysisSpecs {
		if spec.kind == kind {
			return spec
		}
	}
	t.Fatalf("no analysis spec for kind %q", kind)
	return analysisSpec{}
}

func TestPortfolioPromptCarriesAllocation(t *testing.T) {
	contexts := map[string]map[string]interface{}{
		"net_worth": {
			"assets": map[string]interface{}{
				"ASSET_TYPE_SAVINGS_ACCOUNTS": 500000.0,
				"ASSET_TYPE_MUTUAL_FUND":      1500000.0,
			},
			"total_assets":    2000000.0,
			"total_net_worth": 2000000.0,
			"currency":        "INR",
		},
	}

	prompt := buildPrompt(specForKind(t, KindPortfolioAnalysis), contexts)

	for _, want := range []string{
		`"asset_allocation"`,
		`"percentage": 25`,
		`"percentage": 75`,
		`"diversification_score": 2`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("portfolio prompt missing %s\nprompt:\n%s", want, prompt)
		}
	}
}

func TestPortfolioPromptZeroAssets(t *testing.T) {
	contexts := map[string]map[string]interface{}{
		"net_worth": {
			"assets":       map[string]interface{}{"ASSET_TYPE_SAVINGS_ACCOUNTS": 0.0},
			"total_assets": 0.0,
		},
	}

	prompt := buildPrompt(specForKind(t, KindPortfolioAnalysis), contexts)
	if !strings.Contains(prompt, `"percentage": 0`) {
		t.Errorf("zero total assets should yield zero percentages, got:\n%s", prompt)
	}
}

func TestNonPortfolioPromptsNotEnriched(t *testing.T) {
	contexts := map[string]map[string]interface{}{
		"credit_report": {"credit_score": 746.0},
		"net_worth":     {"assets": map[string]interface{}{"ASSET_TYPE_GOLD": 100.0}, "total_assets": 100.0},
	}

	prompt := buildPrompt(specForKind(t, KindRiskAssessment), contexts)
	if strings.Contains(prompt, "asset_allocation") {
		t.Error("risk prompt should carry credit data only, not the allocation view")
	}
}
