// Package sqlguard screens raw-query parameters for SQL injection patterns.
// Parameters are always bound, never interpolated, so a hit here is a
// tripwire for misuse of the raw-query escape hatch rather than a blocked
// attack; callers log the result as a diagnostic.
package sqlguard

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// CheckResult describes one parameter value that matched an injection
// pattern.
type CheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Position    int    // index of the offending parameter
	Value       string
}

// CheckParams runs every string parameter through libinjection and returns
// one result per hit. Non-string values cannot carry injection patterns and
// are skipped. An empty slice means all parameters are clean.
func CheckParams(params []any) []CheckResult {
	var results []CheckResult
	for i, p := range params {
		s, ok := p.(string)
		if !ok {
			continue
		}
		isSQLi, fingerprint := libinjection.IsSQLi(s)
		if isSQLi {
			results = append(results, CheckResult{
				Fingerprint: string(fingerprint),
				Position:    i,
				Value:       s,
			})
		}
	}
	return results
}
