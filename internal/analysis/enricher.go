package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
)

const systemPrompt = `You are a security analyst producing a structured intelligence report on a security-news incident for a non-specialist audience.

Respond with ONLY this JSON document:
{
    "snapshot": {
        "title": "Short incident title",
        "date": "When it happened, as reported",
        "affected_parties": "Who was affected",
        "severity": "LOW" | "MEDIUM" | "HIGH",
        "status": "Investigating" | "Ongoing" | "Contained" | "Resolved"
    },
    "facts": ["2 to 4 confirmed facts"],
    "relevance_tags": ["short topical tags"],
    "impact": {
        "data": "Impact on data",
        "operations": "Impact on operations",
        "legal": "Legal and regulatory exposure",
        "trust": "Reputational impact"
    },
    "root_causes": ["up to 3 root causes"],
    "attack_path": "Narrative of how the attack unfolded",
    "mistakes": [{"title": "Mistake", "explanation": "Why it mattered"}],
    "actions": {
        "for_users": ["actions for affected individuals"],
        "for_organizations": ["actions for similar organizations"]
    },
    "ongoing_risk": {
        "current_risk": "What is still dangerous now",
        "watch_items": ["developments to watch"]
    },
    "executive_summary": "3-4 sentence summary for an executive",
    "case_study": {
        "title": "Case study title",
        "background": "Context before the incident",
        "attack_vector": "Initial entry point",
        "incident_flow": ["at least 2 ordered steps"],
        "outcome": "How it ended or stands today",
        "lessons_learned": ["at least 2 lessons"],
        "recommendations": ["at least 2 recommendations"]
    },
    "attack_type": "One short label, e.g. Ransomware, Phishing, Supply Chain",
    "risk_score": 0-100
}

Only include information supported by the provided text. Use your judgment for severity and risk_score.`

const maxInputChars = 8000

// Enricher drives an ordered list of candidate models against the
// analysis backend until one produces a usable report.
type Enricher struct {
	client Client
	models []string
}

// NewEnricher creates an Enricher. The model list is tried in order; the
// operator's preferred model should come first.
func NewEnricher(client Client, models []string) *Enricher {
	return &Enricher{client: client, models: models}
}

// Analyze produces a normalized analysis payload for the given incident
// text. Retryable model failures (rate limit, unavailable model, empty or
// malformed output) advance to the next candidate model. A quota-exhausted
// response is fatal and returned as ErrQuotaExhausted. When every model is
// exhausted without success, Analyze returns (nil, nil) and the caller
// marks the record failed for a later retry.
func (e *Enricher) Analyze(ctx context.Context, title, text string) (*Payload, error) {
	if len(e.models) == 0 {
		return nil, fmt.Errorf("no analysis models configured")
	}

	user := buildUserContent(title, text)

	for _, model := range e.models {
		raw, err := e.client.Complete(ctx, model, systemPrompt, user)
		if err != nil {
			if errors.Is(err, ErrQuotaExhausted) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Model %s failed, trying next: %v", model, err)
			continue
		}

		payload := ParsePayload(raw)
		if payload == nil {
			log.Printf("Model %s returned unparseable document, trying next", model)
			continue
		}

		payload.Normalize(title)
		return payload, nil
	}

	return nil, nil
}

func buildUserContent(title, text string) string {
	if len(text) > maxInputChars {
		text = text[:maxInputChars] + "..."
	}
	return fmt.Sprintf("Incident title: %s\n\nReported text:\n%s", title, text)
}
