package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{name: "string value", input: json.RawMessage(`"hello"`), want: "hello"},
		{name: "integer value", input: json.RawMessage(`42`), want: "42"},
		{name: "float value", input: json.RawMessage(`3.14`), want: "3.14"},
		{name: "boolean true", input: json.RawMessage(`true`), want: "true"},
		{name: "null value", input: json.RawMessage(`null`), want: ""},
		{name: "nil raw message", input: nil, want: ""},
		{name: "large integer preserves precision", input: json.RawMessage(`9007199254740992`), want: "9007199254740992"},
		{name: "nested object falls back to raw string", input: json.RawMessage(`{"key":"value"}`), want: `{"key":"value"}`},
		{name: "negative integer", input: json.RawMessage(`-7`), want: "-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleStringValue(tt.input)
			if got != tt.want {
				t.Errorf("FlexibleStringValue(%s) = %q, want %q", string(tt.input), got, tt.want)
			}
		})
	}
}

func TestFlexibleFloatValue(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   float64
		wantOK bool
	}{
		{"number", json.RawMessage(`0.95`), 0.95, true},
		{"numeric string", json.RawMessage(`"0.8"`), 0.8, true},
		{"padded string", json.RawMessage(`" 1 "`), 1, true},
		{"word", json.RawMessage(`"high"`), 0, false},
		{"null", json.RawMessage(`null`), 0, false},
		{"missing", nil, 0, false},
		{"object", json.RawMessage(`{}`), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleFloatValue(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FlexibleFloatValue(%s) = (%v, %v), want (%v, %v)", string(tt.input), got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStringFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "p", "p"},
		{"integral float", float64(5432), "5432"},
		{"fractional float", 1.5, "1.5"},
		{"int", 7, "7"},
		{"bool", true, "true"},
		{"json number", json.Number("12"), "12"},
		{"map", map[string]any{"a": "b"}, `{"a":"b"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StringFromAny(tt.input); got != tt.want {
				t.Errorf("StringFromAny(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIntFromAny(t *testing.T) {
	tests := []struct {
		input  any
		want   int
		wantOK bool
	}{
		{5432, 5432, true},
		{float64(3306), 3306, true},
		{float64(1.5), 0, false},
		{"1433", 1433, true},
		{"abc", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := IntFromAny(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("IntFromAny(%v) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestBoolFromAny(t *testing.T) {
	tests := []struct {
		input  any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{"yes", true, true},
		{"FALSE", false, true},
		{float64(0), false, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		got, ok := BoolFromAny(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("BoolFromAny(%v) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}
