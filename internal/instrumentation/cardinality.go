package instrumentation

import "strings"

// AccountDomain reduces an email address to its domain for use as a
// metric label. Full addresses are unbounded and would blow up series
// counts in the metrics backend; domains are few and still useful for
// slicing. Malformed input maps to "unknown".
func AccountDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "unknown"
	}
	return email[at+1:]
}
