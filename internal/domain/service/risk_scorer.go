package service

import (
	"github.com/perimetra/sentinel/internal/domain/models"
	"github.com/perimetra/sentinel/pkg/constants"
)

// Severity and type weights for risk scoring. The score has no time decay:
// it is a function of the event set the caller chose to pass in.
var severityWeights = map[constants.Severity]int{
	constants.SeverityCritical: 25,
	constants.SeverityHigh:     15,
	constants.SeverityMedium:   10,
	constants.SeverityLow:      5,
}

var typeWeights = map[constants.EventType]int{
	constants.EventBruteForceAttempt:  20,
	constants.EventMaliciousRequest:   15,
	constants.EventUnauthorizedAccess: 10,
	constants.EventRateLimitExceeded:  5,
}

// MaxRiskScore bounds the risk score.
const MaxRiskScore = 100

// RiskScore computes a bounded 0-100 score for a set of events: severity
// weights plus type weights summed over all events, plus cumulative
// frequency bonuses. Monotonically non-decreasing in the input set.
func RiskScore(events []models.SecurityEvent) int {
	score := 0
	for i := range events {
		score += severityWeights[events[i].Severity]
		score += typeWeights[events[i].Type]
	}

	// Bonuses are cumulative, not exclusive tiers.
	n := len(events)
	if n > 10 {
		score += 20
	}
	if n > 50 {
		score += 30
	}
	if n > 100 {
		score += 50
	}

	if score > MaxRiskScore {
		score = MaxRiskScore
	}
	return score
}
