package analysis

import "strings"

// highRiskKeywords bump the risk score when they appear in the attack type.
var highRiskKeywords = []string{"ransomware", "apt", "zero-day", "data breach"}

const defaultSelfScore = 50

// Risk score thresholds for the derived record severity.
const (
	highThreshold   = 70
	mediumThreshold = 40
)

// DeriveRiskScore computes the final risk score from a normalized payload:
// the model's self-reported score plus fixed bumps for high-risk attack
// types, payload severity, and the number of identified mistakes, clamped
// to [0,100].
func DeriveRiskScore(p *Payload) int {
	score := defaultSelfScore
	if p.RiskScore != nil {
		score = *p.RiskScore
	}

	attackType := strings.ToLower(p.AttackType)
	for _, kw := range highRiskKeywords {
		if strings.Contains(attackType, kw) {
			score += 15
			break
		}
	}

	switch p.Snapshot.Severity {
	case SeverityHigh:
		score += 20
	case SeverityMedium:
		score += 5
	}

	if len(p.Mistakes) >= 3 {
		score += 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// SeverityForScore re-derives the record severity from the clamped risk
// score. This may override the model's self-reported severity.
func SeverityForScore(score int) string {
	switch {
	case score >= highThreshold:
		return "High"
	case score >= mediumThreshold:
		return "Medium"
	default:
		return "Low"
	}
}
