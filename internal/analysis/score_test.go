package analysis

import "testing"

func TestDeriveRiskScoreCompoundsFactors(t *testing.T) {
	// Self-reported 50, ransomware attack type, HIGH severity, 3 mistakes:
	// 50 + 15 + 20 + 10 = 95.
	self := 50
	p := &Payload{
		RiskScore:  &self,
		AttackType: "Ransomware",
		Snapshot:   Snapshot{Severity: SeverityHigh},
		Mistakes: []Mistake{
			{Title: "a"}, {Title: "b"}, {Title: "c"},
		},
	}
	score := DeriveRiskScore(p)
	if score != 95 {
		t.Errorf("expected 95, got %d", score)
	}
	if SeverityForScore(score) != "High" {
		t.Errorf("expected High final severity, got %q", SeverityForScore(score))
	}
}

func TestDeriveRiskScoreDefaultsSelfReport(t *testing.T) {
	p := &Payload{Snapshot: Snapshot{Severity: SeverityLow}}
	if got := DeriveRiskScore(p); got != 50 {
		t.Errorf("expected default base 50, got %d", got)
	}
}

func TestDeriveRiskScoreKeywordMatching(t *testing.T) {
	self := 50
	cases := map[string]int{
		"Zero-Day Exploit":       65, // case-insensitive substring
		"APT campaign":           65,
		"Data Breach disclosure": 65,
		"Phishing":               50,
	}
	for attackType, want := range cases {
		p := &Payload{RiskScore: &self, AttackType: attackType, Snapshot: Snapshot{Severity: SeverityLow}}
		if got := DeriveRiskScore(p); got != want {
			t.Errorf("attack type %q: expected %d, got %d", attackType, want, got)
		}
	}
}

func TestDeriveRiskScoreClamped(t *testing.T) {
	self := 95
	p := &Payload{
		RiskScore:  &self,
		AttackType: "Ransomware",
		Snapshot:   Snapshot{Severity: SeverityHigh},
		Mistakes:   []Mistake{{}, {}, {}},
	}
	if got := DeriveRiskScore(p); got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}

	negative := -30
	p2 := &Payload{RiskScore: &negative, Snapshot: Snapshot{Severity: SeverityLow}}
	if got := DeriveRiskScore(p2); got != 0 {
		t.Errorf("expected clamp to 0, got %d", got)
	}
}

func TestSeverityForScoreThresholds(t *testing.T) {
	cases := map[int]string{
		100: "High",
		70:  "High",
		69:  "Medium",
		40:  "Medium",
		39:  "Low",
		0:   "Low",
	}
	for score, want := range cases {
		if got := SeverityForScore(score); got != want {
			t.Errorf("score %d: expected %q, got %q", score, want, got)
		}
	}
}

func TestMediumSeverityBump(t *testing.T) {
	self := 40
	p := &Payload{RiskScore: &self, Snapshot: Snapshot{Severity: SeverityMedium}}
	if got := DeriveRiskScore(p); got != 45 {
		t.Errorf("expected 45, got %d", got)
	}
}
