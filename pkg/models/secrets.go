package models

import (
	"encoding/json"
	"strings"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/jsonutil"
)

// SecretBundle is the set of credential fields for one environment, keyed by name
// (username, password, accessToken, serviceAccountJson, ...). Every value is a string:
// numbers and booleans supplied by callers are coerced on the way in, so what is read
// back from the vault is exactly the string that was written.
type SecretBundle map[string]string

// NewSecretBundle coerces a loosely typed map into a bundle. Nil values are dropped.
func NewSecretBundle(m map[string]any) SecretBundle {
	if m == nil {
		return nil
	}
	b := make(SecretBundle, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		b[k] = jsonutil.StringFromAny(v)
	}
	return b
}

// UnmarshalJSON accepts non-string JSON values and stores their string form.
func (b *SecretBundle) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*b = nil
		return nil
	}
	out := make(SecretBundle, len(raw))
	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		out[k] = jsonutil.FlexibleStringValue(v)
	}
	*b = out
	return nil
}

// Get returns the first non-empty value among the given keys. Key lookup falls back
// to a case-insensitive match so "Password" and "password" are equivalent.
func (b SecretBundle) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := b[k]; ok && v != "" {
			return v
		}
	}
	for _, k := range keys {
		for bk, v := range b {
			if v != "" && strings.EqualFold(bk, k) {
				return v
			}
		}
	}
	return ""
}

func (b SecretBundle) Username() string {
	return b.Get("username", "user")
}

func (b SecretBundle) Password() string {
	return b.Get("password")
}

// IsEmpty reports whether the bundle carries no non-empty value.
func (b SecretBundle) IsEmpty() bool {
	for _, v := range b {
		if v != "" {
			return false
		}
	}
	return true
}

// Values returns every non-empty value, for redaction of error text. Values that
// hold a JSON object (service account keys) also contribute their string fields.
func (b SecretBundle) Values() []string {
	vals := make([]string, 0, len(b))
	for _, v := range b {
		if v == "" {
			continue
		}
		vals = append(vals, v)
		if strings.HasPrefix(strings.TrimSpace(v), "{") {
			var nested map[string]any
			if json.Unmarshal([]byte(v), &nested) == nil {
				for _, nv := range nested {
					if s, ok := nv.(string); ok && s != "" {
						vals = append(vals, s)
					}
				}
			}
		}
	}
	return vals
}
