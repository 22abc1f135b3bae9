package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// Matches password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches the password part of user:pass@host URLs
	urlPasswordPattern = regexp.MustCompile(`(://[^:/@\s]+):[^\s]*@([^@/\s]+)`)
)

// SanitizeConnectionString removes passwords from keyword/value and URL
// connection strings. The user and host are kept so the log still says where
// the server connected.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = urlPasswordPattern.ReplaceAllString(sanitized, "${1}:"+RedactedText+"@${2}")
	return sanitized
}

// SanitizeError sanitizes error messages from database drivers, which may
// echo the connection string they failed with.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}
