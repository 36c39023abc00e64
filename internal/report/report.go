// Package report renders a stored analysis payload into a human-readable
// markdown intelligence report.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/threatwire/threatwire/internal/analysis"
	"github.com/threatwire/threatwire/internal/database"
)

// Compose renders the incident's analysis payload as markdown. Returns an
// error when the incident has no stored analysis or it fails to decode.
func Compose(inc *database.Incident) (string, error) {
	if inc.Analysis == nil || *inc.Analysis == "" {
		return "", fmt.Errorf("incident %d has no analysis", inc.ID)
	}

	var p analysis.Payload
	if err := json.Unmarshal([]byte(*inc.Analysis), &p); err != nil {
		return "", fmt.Errorf("decoding analysis for incident %d: %w", inc.ID, err)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Snapshot.Title)
	fmt.Fprintf(&b, "**Source:** %s  \n", inc.Source)
	fmt.Fprintf(&b, "**Severity:** %s", p.Snapshot.Severity)
	if inc.RiskScore != nil {
		fmt.Fprintf(&b, " (risk score %d/100)", *inc.RiskScore)
	}
	b.WriteString("  \n")
	fmt.Fprintf(&b, "**Status:** %s  \n", p.Snapshot.Status)
	fmt.Fprintf(&b, "**Affected:** %s\n\n", p.Snapshot.AffectedParties)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(p.ExecutiveSummary)
	b.WriteString("\n\n")

	b.WriteString("## Key Facts\n\n")
	writeList(&b, p.Facts)

	b.WriteString("## Impact\n\n")
	fmt.Fprintf(&b, "- **Data:** %s\n", p.Impact.Data)
	fmt.Fprintf(&b, "- **Operations:** %s\n", p.Impact.Operations)
	fmt.Fprintf(&b, "- **Legal:** %s\n", p.Impact.Legal)
	fmt.Fprintf(&b, "- **Trust:** %s\n\n", p.Impact.Trust)

	b.WriteString("## Attack Path\n\n")
	b.WriteString(p.AttackPath)
	b.WriteString("\n\n")

	b.WriteString("## Root Causes\n\n")
	writeList(&b, p.RootCauses)

	if len(p.Mistakes) > 0 {
		b.WriteString("## What Went Wrong\n\n")
		for _, m := range p.Mistakes {
			fmt.Fprintf(&b, "- **%s**: %s\n", m.Title, m.Explanation)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommended Actions\n\n")
	b.WriteString("### For individuals\n\n")
	writeList(&b, p.Actions.ForUsers)
	b.WriteString("### For organizations\n\n")
	writeList(&b, p.Actions.ForOrganizations)

	b.WriteString("## Ongoing Risk\n\n")
	b.WriteString(p.OngoingRisk.CurrentRisk)
	b.WriteString("\n\n")
	writeList(&b, p.OngoingRisk.WatchItems)

	cs := p.CaseStudy
	fmt.Fprintf(&b, "## Case Study: %s\n\n", cs.Title)
	fmt.Fprintf(&b, "%s\n\n", cs.Background)
	fmt.Fprintf(&b, "**Attack vector:** %s\n\n", cs.AttackVector)
	b.WriteString("### Incident flow\n\n")
	for i, step := range cs.IncidentFlow {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "**Outcome:** %s\n\n", cs.Outcome)
	b.WriteString("### Lessons learned\n\n")
	writeList(&b, cs.LessonsLearned)
	b.WriteString("### Recommendations\n\n")
	writeList(&b, cs.Recommendations)

	return b.String(), nil
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
