// Package analysis enriches stored incidents with a structured
// intelligence report produced by an external LLM service.
package analysis

// Payload severity values as produced by the model.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Snapshot status values.
const (
	StatusInvestigating = "Investigating"
	StatusOngoing       = "Ongoing"
	StatusContained     = "Contained"
	StatusResolved      = "Resolved"
)

var validSeverities = map[string]bool{
	SeverityLow:    true,
	SeverityMedium: true,
	SeverityHigh:   true,
}

var validStatuses = map[string]bool{
	StatusInvestigating: true,
	StatusOngoing:       true,
	StatusContained:     true,
	StatusResolved:      true,
}

// Payload is the structured intelligence report for one incident. After
// Normalize it is structurally complete: every list has at least its
// placeholder content and every enum holds a valid value, so consumers
// never branch on missing fields.
type Payload struct {
	Snapshot         Snapshot    `json:"snapshot"`
	Facts            []string    `json:"facts"`
	RelevanceTags    []string    `json:"relevance_tags"`
	Impact           Impact      `json:"impact"`
	RootCauses       []string    `json:"root_causes"`
	AttackPath       string      `json:"attack_path"`
	Mistakes         []Mistake   `json:"mistakes"`
	Actions          Actions     `json:"actions"`
	OngoingRisk      OngoingRisk `json:"ongoing_risk"`
	ExecutiveSummary string      `json:"executive_summary"`
	CaseStudy        CaseStudy   `json:"case_study"`
	AttackType       string      `json:"attack_type"`
	RiskScore        *int        `json:"risk_score"`
}

// Snapshot is the at-a-glance block of the report.
type Snapshot struct {
	Title           string `json:"title"`
	Date            string `json:"date"`
	AffectedParties string `json:"affected_parties"`
	Severity        string `json:"severity"`
	Status          string `json:"status"`
}

// Impact describes consequences across four dimensions.
type Impact struct {
	Data       string `json:"data"`
	Operations string `json:"operations"`
	Legal      string `json:"legal"`
	Trust      string `json:"trust"`
}

// Mistake is one identified failure with its explanation.
type Mistake struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// Actions holds recommended actions for individuals and organizations.
type Actions struct {
	ForUsers         []string `json:"for_users"`
	ForOrganizations []string `json:"for_organizations"`
}

// OngoingRisk describes what remains dangerous and what to watch.
type OngoingRisk struct {
	CurrentRisk string   `json:"current_risk"`
	WatchItems  []string `json:"watch_items"`
}

// CaseStudy is the narrative sub-document embedded in the payload.
type CaseStudy struct {
	Title           string   `json:"title"`
	Background      string   `json:"background"`
	AttackVector    string   `json:"attack_vector"`
	IncidentFlow    []string `json:"incident_flow"`
	Outcome         string   `json:"outcome"`
	LessonsLearned  []string `json:"lessons_learned"`
	Recommendations []string `json:"recommendations"`
}
