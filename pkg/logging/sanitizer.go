// Package logging redacts credentials from text before it is logged or returned to callers.
package logging

import (
	"regexp"
	"sort"
	"strings"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// token=xxx, access_token=xxx, accessToken=xxx
	tokenPattern = regexp.MustCompile(`(?i)(access_?token|token|secret)=[^;&\s]+`)

	// Bearer tokens, JWT or opaque (Databricks personal access tokens start with dapi)
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.=]+`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9\-_]{20,}`)

	// user:pass@host in URLs and Go driver DSNs (user:pass@tcp(host:port)/db)
	userInfoPattern = regexp.MustCompile(`([a-z][a-z0-9+.\-]*://)?[^\s:/@]+:[^\s@]+@`)

	// PEM private keys embedded in service account JSON
	privateKeyPattern = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)
)

// SanitizeConnectionString removes credentials from a connection string or DSN.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = tokenPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return userInfoPattern.ReplaceAllString(sanitized, "${1}"+RedactedText+"@")
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error from a datasource driver.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText applies every redaction pattern to free text.
func SanitizeText(text string) string {
	sanitized := privateKeyPattern.ReplaceAllString(text, RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return SanitizeConnectionString(sanitized)
}

// RedactValues replaces every literal occurrence of the given secret values in text.
// Values shorter than four characters are skipped to avoid shredding unrelated words.
// Longer values are replaced first so overlapping secrets are fully removed.
func RedactValues(text string, values ...string) string {
	candidates := make([]string, 0, len(values))
	for _, v := range values {
		if len(v) >= 4 {
			candidates = append(candidates, v)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	for _, v := range candidates {
		text = strings.ReplaceAll(text, v, RedactedText)
	}
	return text
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
