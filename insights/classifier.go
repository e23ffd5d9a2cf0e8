package insights

import "strings"

// Command is an enumerated analysis request parsed from free text.
type Command string

const (
	CommandComprehensiveAnalysis Command = "comprehensive_analysis"
	CommandRiskAssessment        Command = "risk_assessment"
	CommandMarketAnalysis        Command = "market_analysis"
	CommandOpportunities         Command = "opportunity_identification"
	CommandStressTest            Command = "stress_testing"
	CommandSystemStatus          Command = "system_status"
	CommandHelp                  Command = "help"
	CommandGeneralQuery          Command = "general_query"
)

// Intent is the classification result for one free-text request.
type Intent struct {
	Command    Command `json:"command"`
	Original   string  `json:"original_message"`
	Confidence float64 `json:"confidence"`
}

// intentPatterns is an ordered matching table: the first command whose
// pattern appears as a substring of the lowercased message wins. Order
// matters because patterns overlap ("risk" also appears in "portfolio risk").
var intentPatterns = []struct {
	command  Command
	patterns []string
}{
	{CommandComprehensiveAnalysis, []string{
		"comprehensive analysis", "full analysis", "complete analysis",
		"analyze everything", "analyze portfolio", "financial analysis",
	}},
	{CommandRiskAssessment, []string{
		"risk", "risk assessment", "risk analysis", "assess risk",
		"portfolio risk", "how risky", "risk level",
	}},
	{CommandMarketAnalysis, []string{
		"market", "market analysis", "market trends", "market conditions",
		"market outlook", "analyze market",
	}},
	{CommandOpportunities, []string{
		"opportunities", "opportunity", "investment opportunities",
		"find opportunities", "what to invest", "investment ideas",
	}},
	{CommandStressTest, []string{
		"stress test", "stress testing", "scenario analysis",
		"what if", "market crash", "worst case",
	}},
	{CommandSystemStatus, []string{
		"status", "system status", "health", "how are you",
		"system health", "check system",
	}},
	{CommandHelp, []string{
		"help", "what can you do", "capabilities", "commands",
		"how to use", "instructions",
	}},
}

// ParseIntent classifies a free-text message into an analysis command.
// Unrecognized messages fall through to a low-confidence general query.
func ParseIntent(message string) Intent {
	lowered := strings.ToLower(message)

	for _, entry := range intentPatterns {
		for _, pattern := range entry.patterns {
			if strings.Contains(lowered, pattern) {
				return Intent{
					Command:    entry.command,
					Original:   message,
					Confidence: 0.8,
				}
			}
		}
	}

	return Intent{
		Command:    CommandGeneralQuery,
		Original:   message,
		Confidence: 0.5,
	}
}
