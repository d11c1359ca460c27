package sql

import (
	"errors"
	"testing"
)

func TestParseTableName(t *testing.T) {
	tests := []struct {
		input  string
		schema string
		table  string
	}{
		{"orders", "", "orders"},
		{"public.orders", "public", "orders"},
		{"  sales.order_items ", "sales", "order_items"},
		{`"My Schema"."Order.Lines"`, "My Schema", "Order.Lines"},
		{"[dbo].[Customers]", "dbo", "Customers"},
		{"`events`.`clicks`", "events", "clicks"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTableName(tt.input)
			if err != nil {
				t.Fatalf("ParseTableName(%q) error: %v", tt.input, err)
			}
			if got.Schema != tt.schema || got.Table != tt.table {
				t.Errorf("ParseTableName(%q) = %+v, want schema=%q table=%q", tt.input, got, tt.schema, tt.table)
			}
		})
	}
}

func TestParseTableName_Rejects(t *testing.T) {
	inputs := []string{
		"",
		"orders; DROP TABLE users",
		"'; DROP TABLE users--",
		"' OR '1'='1",
		"a.b.c",
		"public.",
		`"unterminated`,
		"tab\x00le",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTableName(input)
			if !errors.Is(err, ErrInvalidTableName) {
				t.Errorf("ParseTableName(%q) error = %v, want ErrInvalidTableName", input, err)
			}
		})
	}
}

func TestSplitIdentifier_EscapedQuote(t *testing.T) {
	parts, err := splitIdentifier(`"odd""name".t`)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 || parts[0] != `odd"name` || parts[1] != "t" {
		t.Errorf("splitIdentifier = %q", parts)
	}
}

func TestCheckForInjection(t *testing.T) {
	if res := CheckForInjection("customers"); res != nil {
		t.Errorf("expected clean table name, got fingerprint %s", res.Fingerprint)
	}

	res := CheckForInjection("1 UNION SELECT * FROM passwords")
	if res == nil || !res.IsSQLi {
		t.Fatal("expected injection to be detected")
	}
	if res.Fingerprint == "" {
		t.Error("expected a fingerprint")
	}
}

func TestTableName_String(t *testing.T) {
	if got := (TableName{Schema: "public", Table: "orders"}).String(); got != "public.orders" {
		t.Errorf("String() = %q", got)
	}
	if got := (TableName{Table: "orders"}).String(); got != "orders" {
		t.Errorf("String() = %q", got)
	}
}
