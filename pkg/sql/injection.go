// Package sql validates caller-supplied identifiers before they are matched
// against a datasource catalog.
package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes an input that libinjection flagged.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Input       string
}

// CheckForInjection runs libinjection over value. Returns nil when value is clean.
//
// Example:
//
//	CheckForInjection("public.orders")          // nil
//	CheckForInjection("'; DROP TABLE users--")  // IsSQLi == true
func CheckForInjection(value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Input:       value,
	}
}
