package analysis

import "strings"

// Placeholder values used when the model omits or mangles a field.
const (
	placeholderFact     = "No facts available"
	placeholderText     = "Analysis pending"
	placeholderUnknown  = "Unknown"
	placeholderFlowStep = "Details pending"
)

// Normalize fills every absent or malformed field with a typed default so
// the payload is safe to persist even when the model partially complies.
// fallbackTitle seeds the snapshot and case-study titles when missing.
func (p *Payload) Normalize(fallbackTitle string) {
	p.Snapshot.Title = defaultText(p.Snapshot.Title, fallbackTitle)
	p.Snapshot.Date = defaultText(p.Snapshot.Date, placeholderUnknown)
	p.Snapshot.AffectedParties = defaultText(p.Snapshot.AffectedParties, placeholderUnknown)
	p.Snapshot.Severity = normalizeSeverity(p.Snapshot.Severity)
	if !validStatuses[p.Snapshot.Status] {
		p.Snapshot.Status = StatusInvestigating
	}

	if len(p.Facts) == 0 {
		p.Facts = []string{placeholderFact}
	}
	if len(p.RelevanceTags) == 0 {
		p.RelevanceTags = []string{"security-news"}
	}

	p.Impact.Data = defaultText(p.Impact.Data, placeholderUnknown)
	p.Impact.Operations = defaultText(p.Impact.Operations, placeholderUnknown)
	p.Impact.Legal = defaultText(p.Impact.Legal, placeholderUnknown)
	p.Impact.Trust = defaultText(p.Impact.Trust, placeholderUnknown)

	if len(p.RootCauses) == 0 {
		p.RootCauses = []string{"Under investigation"}
	}
	if len(p.RootCauses) > 3 {
		p.RootCauses = p.RootCauses[:3]
	}

	p.AttackPath = defaultText(p.AttackPath, placeholderText)

	// Mistakes stay empty when absent: an empty list is a meaningful
	// "none identified", unlike the other list fields.
	if p.Mistakes == nil {
		p.Mistakes = []Mistake{}
	}

	if len(p.Actions.ForUsers) == 0 {
		p.Actions.ForUsers = []string{"No specific action required"}
	}
	if len(p.Actions.ForOrganizations) == 0 {
		p.Actions.ForOrganizations = []string{"Review security posture"}
	}

	p.OngoingRisk.CurrentRisk = defaultText(p.OngoingRisk.CurrentRisk, placeholderUnknown)
	if len(p.OngoingRisk.WatchItems) == 0 {
		p.OngoingRisk.WatchItems = []string{"Monitor for further disclosures"}
	}

	p.ExecutiveSummary = defaultText(p.ExecutiveSummary, placeholderText)
	p.AttackType = defaultText(p.AttackType, placeholderUnknown)

	p.CaseStudy.normalize(fallbackTitle)
}

func (cs *CaseStudy) normalize(fallbackTitle string) {
	cs.Title = defaultText(cs.Title, fallbackTitle)
	cs.Background = defaultText(cs.Background, placeholderText)
	cs.AttackVector = defaultText(cs.AttackVector, placeholderUnknown)
	cs.Outcome = defaultText(cs.Outcome, placeholderText)

	cs.IncidentFlow = padList(cs.IncidentFlow, 2, placeholderFlowStep)
	cs.LessonsLearned = padList(cs.LessonsLearned, 2, placeholderText)
	cs.Recommendations = padList(cs.Recommendations, 2, placeholderText)
}

func normalizeSeverity(s string) string {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if validSeverities[upper] {
		return upper
	}
	return SeverityMedium
}

func defaultText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// padList appends placeholders until the list reaches its minimum length.
func padList(list []string, min int, placeholder string) []string {
	for len(list) < min {
		list = append(list, placeholder)
	}
	return list
}
