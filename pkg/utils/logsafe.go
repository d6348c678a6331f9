package utils

import "regexp"

var (
	reToken   = regexp.MustCompile(`(?i)([?&]token=)[^&#]+`)
	reAPIKeys = regexp.MustCompile(`(?i)([?&](?:api_key|apikey|key)=)[^&#]+`)
)

// RedactURL masks capability-bearing query parameters before a URL is
// written to a log line.
func RedactURL(s string) string {
	s = reToken.ReplaceAllString(s, "${1}[REDACTED]")
	s = reAPIKeys.ReplaceAllString(s, "${1}[REDACTED]")

	return s
}
