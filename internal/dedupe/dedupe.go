// Package dedupe decides whether a fetched feed item is already known,
// by normalized URL or by content fingerprint.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are stripped during URL normalization so the same article
// shared through different campaigns compares equal.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "ref", "source"}

// Fingerprint returns a deterministic content identity hash over the
// case-folded, whitespace-trimmed title and description.
func Fingerprint(title, description string) string {
	content := strings.ToLower(strings.TrimSpace(title)) + strings.ToLower(strings.TrimSpace(description))
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL canonicalizes a URL for duplicate comparison: known tracking
// query parameters are removed and the result is lower-cased. Unparseable
// input falls back to the lower-cased raw string.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return strings.ToLower(raw)
	}

	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()

	return strings.ToLower(u.String())
}
