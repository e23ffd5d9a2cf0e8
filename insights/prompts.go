package insights

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"fin_backend/fimcp"
)

// Kind identifies one analysis variety. Each generation run produces at most
// one insight per kind.
type Kind string

const (
	KindPortfolioAnalysis Kind = "portfolio_analysis"
	KindRiskAssessment    Kind = "risk_assessment"
	KindFinancialHealth   Kind = "financial_health_analysis"
	KindOpportunity       Kind = "opportunity"
	KindGeneral           Kind = "general"
)

// analysisSpec describes one insight variety: its fixed confidence, the
// advisor persona the generator assumes, and the category the analysis
// cannot run without. An empty requires means any stored data suffices.
type analysisSpec struct {
	kind       Kind
	title      string
	confidence float64
	systemRole string
	requires   fimcp.Category
}

// analysisSpecs is evaluated in order on every generation run.
var analysisSpecs = []analysisSpec{
	{
		kind:       KindPortfolioAnalysis,
		title:      "Portfolio Composition Analysis",
		confidence: 0.85,
		systemRole: "You are a financial advisor specializing in portfolio analysis. Provide clear, actionable insights based on the data.",
		requires:   fimcp.CategoryNetWorth,
	},
	{
		kind:       KindRiskAssessment,
		title:      "Credit Risk Assessment",
		confidence: 0.90,
		systemRole: "You are a credit counselor providing risk assessment and improvement strategies. Be specific and practical.",
		requires:   fimcp.CategoryCreditReport,
	},
	{
		kind:       KindFinancialHealth,
		title:      "Financial Health Analysis",
		confidence: 0.88,
		systemRole: "You are a financial wellness advisor. Provide holistic financial health assessment with prioritized recommendations.",
	},
	{
		kind:       KindOpportunity,
		title:      "Financial Opportunities Analysis",
		confidence: 0.82,
		systemRole: "You are an investment advisor focused on identifying growth opportunities. Provide specific, actionable recommendations.",
	},
}

// buildPrompt composes the user prompt for one analysis kind from the
// normalized metrics of the categories it draws on. The portfolio kind gets
// the derived allocation view instead of the raw net-worth metrics.
func buildPrompt(spec analysisSpec, contexts map[string]map[string]interface{}) string {
	var data interface{}
	switch {
	case spec.kind == KindPortfolioAnalysis:
		data = portfolioData(contexts[string(spec.requires)])
	case spec.requires != "":
		data = contexts[string(spec.requires)]
	default:
		data = contexts
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		encoded = []byte("{}")
	}

	switch spec.kind {
	case KindPortfolioAnalysis:
		return fmt.Sprintf(`Analyze this portfolio composition and provide investment insights:

Portfolio Data:
%s

Please provide:
1. Asset allocation analysis
2. Diversification assessment
3. Risk level evaluation
4. Specific recommendations for improvement

Keep the analysis practical and actionable.`, encoded)

	case KindRiskAssessment:
		return fmt.Sprintf(`Analyze this credit profile and assess financial risk:

Credit Data:
%s

Please provide:
1. Credit score interpretation
2. Risk factors identified
3. Credit improvement strategies
4. Debt management recommendations

Focus on actionable steps for credit improvement.`, encoded)

	case KindFinancialHealth:
		return fmt.Sprintf(`Analyze the overall financial health based on this comprehensive data:

Financial Summary:
%s

Please provide:
1. Overall financial health score (1-10)
2. Strengths in the financial profile
3. Areas needing improvement
4. Priority actions for financial wellness

Provide a balanced assessment with specific recommendations.`, encoded)

	default:
		return fmt.Sprintf(`Identify financial opportunities based on this data:

Financial Data:
%s

Please identify:
1. Investment opportunities based on current allocation
2. Tax optimization strategies
3. Income enhancement possibilities
4. Cost reduction opportunities

Focus on specific, actionable opportunities with clear benefits.`, encoded)
	}
}

// portfolioData enriches the stored net-worth metrics with the per-asset
// percentage allocation and a diversification count. Percentages are derived
// here rather than read from storage so re-analysis of old records always
// reflects the current asset figures.
func portfolioData(metrics map[string]interface{}) map[string]interface{} {
	assets := map[string]float64{}
	switch raw := metrics["assets"].(type) {
	case map[string]float64:
		for assetType, value := range raw {
			assets[assetType] = value
		}
	case map[string]interface{}:
		// Metrics round-trip through JSON storage, so numbers arrive as
		// float64 inside an interface map.
		for assetType, value := range raw {
			if amount, ok := value.(float64); ok {
				assets[assetType] = amount
			}
		}
	}
	totalAssets, _ := metrics["total_assets"].(float64)

	enriched := make(map[string]interface{}, len(metrics)+2)
	for key, value := range metrics {
		enriched[key] = value
	}
	enriched["asset_allocation"] = fimcp.AssetAllocation(assets, totalAssets)
	enriched["diversification_score"] = len(assets)
	return enriched
}

// fallbackContent produces a deterministic summary when no generator is
// configured or the generator fails. It reports only what the stored metrics
// say, in a stable order.
func fallbackContent(spec analysisSpec, contexts map[string]map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (deterministic summary, no generator configured).\n", spec.title)

	categories := make([]string, 0, len(contexts))
	for category := range contexts {
		if spec.requires != "" && category != string(spec.requires) {
			continue
		}
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		metrics := contexts[category]
		keys := make([]string, 0, len(metrics))
		for key := range metrics {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(&b, "- %s:", category)
		for _, key := range keys {
			fmt.Fprintf(&b, " %s=%v", key, metrics[key])
		}
		b.WriteString("\n")
	}

	return b.String()
}
