package sql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxIdentifierLength is the longest identifier part accepted. It covers the
// limits of every supported engine (BigQuery allows 1024 characters).
const MaxIdentifierLength = 1024

var ErrInvalidTableName = errors.New("invalid table name")

// InjectionError is returned when libinjection flags part of a table name.
// It matches ErrInvalidTableName with errors.Is.
type InjectionError struct {
	Name        string
	Fingerprint string
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("%v: %q matches injection pattern %s", ErrInvalidTableName, e.Name, e.Fingerprint)
}

func (e *InjectionError) Unwrap() error { return ErrInvalidTableName }

// TableName is a parsed table reference. Schema is empty for a bare name.
type TableName struct {
	Schema string
	Table  string
}

func (n TableName) String() string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "." + n.Table
}

// ParseTableName splits a caller-supplied "table" or "schema.table" reference.
// Each part may be quoted with double quotes, backticks or brackets, in which
// case it may contain dots. Names with control characters, statement
// separators or a part that libinjection flags are rejected with ErrInvalidTableName.
func ParseTableName(name string) (TableName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TableName{}, fmt.Errorf("%w: empty", ErrInvalidTableName)
	}
	if strings.ContainsRune(name, ';') {
		return TableName{}, fmt.Errorf("%w: %q contains a statement separator", ErrInvalidTableName, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return TableName{}, fmt.Errorf("%w: contains control characters", ErrInvalidTableName)
		}
	}

	parts, err := splitIdentifier(name)
	if err != nil {
		return TableName{}, err
	}
	for _, p := range parts {
		if p == "" || len(p) > MaxIdentifierLength {
			return TableName{}, fmt.Errorf("%w: %q", ErrInvalidTableName, name)
		}
		if res := CheckForInjection(p); res != nil {
			return TableName{}, &InjectionError{Name: name, Fingerprint: res.Fingerprint}
		}
	}

	switch len(parts) {
	case 1:
		return TableName{Table: parts[0]}, nil
	case 2:
		return TableName{Schema: parts[0], Table: parts[1]}, nil
	}
	return TableName{}, fmt.Errorf("%w: %q has more than two parts", ErrInvalidTableName, name)
}

// splitIdentifier splits on dots outside quotes and strips the quotes.
// A doubled closing quote inside a quoted part is an escaped quote.
func splitIdentifier(name string) ([]string, error) {
	var (
		parts  []string
		cur    strings.Builder
		closer rune
	)
	runes := []rune(name)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if closer != 0 {
			if r == closer {
				if i+1 < len(runes) && runes[i+1] == closer {
					cur.WriteRune(r)
					i++
					continue
				}
				closer = 0
				continue
			}
			cur.WriteRune(r)
			continue
		}
		switch r {
		case '"', '`':
			closer = r
		case '[':
			closer = ']'
		case '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if closer != 0 {
		return nil, fmt.Errorf("%w: %q has an unterminated quote", ErrInvalidTableName, name)
	}
	return append(parts, cur.String()), nil
}
