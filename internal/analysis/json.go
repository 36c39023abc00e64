package analysis

import (
	"encoding/json"
	"strings"
)

// ParsePayload parses a model completion into a Payload, tolerating
// markdown code fences around the JSON document. Returns nil when the
// text does not contain a parseable document of the expected shape.
func ParsePayload(text string) *Payload {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil
	}
	return &p
}
