package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

const truncatedArray = `[{"sourceTable":"a","sourceColumn":"id","targetTable":"b","targetColumn":"a_id","relationshipType":"one_to_many","confidence":0.9,"description":"link"},{"sourceTable":"b","source`

func TestSplitResponse_Markers(t *testing.T) {
	content := "=== ANALYSIS ===\norders reference customers\n\n=== STRUCTURED_DATA ===\n```json\n[]\n```"

	analysis, structured := splitResponse(content)

	assert.Equal(t, "orders reference customers", analysis)
	assert.Equal(t, "```json\n[]\n```", structured)
}

func TestSplitResponse_NoMarkers(t *testing.T) {
	analysis, structured := splitResponse("I could not find any relationships.")

	assert.Equal(t, "I could not find any relationships.", analysis)
	assert.Empty(t, structured)
}

func TestSplitResponse_JSONMode(t *testing.T) {
	analysis, structured := splitResponse(`{"analysis": "one link", "relationships": [{"source_table": "a"}]}`)

	assert.Equal(t, "one link", analysis)
	assert.JSONEq(t, `[{"source_table": "a"}]`, structured)
}

func TestSplitResponse_TruncatedJSONMode(t *testing.T) {
	analysis, structured := splitResponse(`{"analysis": "one \"link\"", "relationships": [{"source_table": "a", "sou`)

	assert.Equal(t, `one "link"`, analysis)
	assert.Equal(t, `"relationships": [{"source_table": "a", "sou`, structured)
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced json", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"plain fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"prose around", "Here you go: [1] thanks", `[1]`},
		{"truncated", `[{"a":1},{"b"`, `[{"a":1},{"b"`},
		{"unclosed fence", "```json\n[{\"a\":1},{", `[{"a":1},{`},
		{"no array", "nothing here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONArray(tt.in))
		})
	}
}

func TestCheckBalance(t *testing.T) {
	assert.True(t, checkBalance(`[{"a":"]"}]`), "brackets inside strings are ignored")
	assert.True(t, checkBalance(`[]`))
	assert.False(t, checkBalance(`[{"a":1}`))
	assert.False(t, checkBalance(`[{"a":"open`))
	assert.False(t, checkBalance(`[}`))
}

func TestStripDangling(t *testing.T) {
	assert.Equal(t, `[{"a":1},{`, stripDangling(`[{"a":1},{"b":`))
	assert.Equal(t, `[{"a":1}`, stripDangling(`[{"a":1}, `))
	assert.Equal(t, `[{"a":1},{"b":2`, stripDangling(`[{"a":1},{"b":2,"sou`))
	assert.Equal(t, `[{"a":"x\"y"`, stripDangling(`[{"a":"x\"y","b":"trunc`))
}

func TestTruncateToLastObject(t *testing.T) {
	out, ok := truncateToLastObject(`[{"a":{"n":1}},{"b":2`)
	require.True(t, ok)
	assert.Equal(t, `[{"a":{"n":1}}`, out)

	_, ok = truncateToLastObject(`[{"a":1`)
	assert.False(t, ok)
}

func TestReclose(t *testing.T) {
	assert.Equal(t, `[{"a":[1]}]`, reclose(`[{"a":[1`+`]`))
	assert.Equal(t, `[{"a":[1]}]`, reclose(`[{"a":[1`))
	assert.Equal(t, `[{"x":"["}]`, reclose(`[{"x":"["}`))
}

func TestReparse(t *testing.T) {
	elements, err := reparse(`[{"a":1},{"b":2}]`)
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	_, err = reparse(`{"a":1}`)
	assert.Error(t, err)
}

func TestRepairJSONArray_TruncatedExample(t *testing.T) {
	elements, repaired, ok := repairJSONArray(truncatedArray)

	require.True(t, ok)
	assert.True(t, repaired)
	require.Len(t, elements, 1)

	c, ok := decodeCandidate(elements[0])
	require.True(t, ok)
	assert.Equal(t, "a", c.SourceTable)
	assert.Equal(t, "a_id", c.TargetColumn)
	assert.Equal(t, models.CardinalityOneToMany, c.Kind)
}

func TestRepairJSONArray_BalancedButInvalidGivesUp(t *testing.T) {
	elements, repaired, ok := repairJSONArray(`[{"a":1,}]`)

	assert.False(t, ok)
	assert.False(t, repaired)
	assert.Nil(t, elements)
}

func TestRepairJSONArray_NothingComplete(t *testing.T) {
	_, _, ok := repairJSONArray(`[{"sourceTable":"a"`)
	assert.False(t, ok)
}

func TestParseRelationshipResponse_GarbageYieldsNoCandidates(t *testing.T) {
	parsed := parseRelationshipResponse("=== ANALYSIS ===\nthoughts\n=== STRUCTURED_DATA ===\n[this is not json")

	assert.Equal(t, "thoughts", parsed.Analysis)
	assert.True(t, parsed.Failed)
	assert.Empty(t, parsed.Elements)
}

func TestParseRelationshipResponse_StripsThinking(t *testing.T) {
	parsed := parseRelationshipResponse("<think>hmm</think>\n=== ANALYSIS ===\nok\n=== STRUCTURED_DATA ===\n[]")

	assert.Equal(t, "ok", parsed.Analysis)
	assert.False(t, parsed.Failed)
	assert.Empty(t, parsed.Elements)
}

func TestDecodeCandidate_FlexibleFields(t *testing.T) {
	c, ok := decodeCandidate(json.RawMessage(`{
		"source_table": "orders", "source_column": "customer_id",
		"target_table": "customers", "target_column": "id",
		"kind": "One-To-Many", "confidence": "0.85", "description": "owner"
	}`))

	require.True(t, ok)
	assert.Equal(t, models.CardinalityOneToMany, c.Kind)
	assert.InDelta(t, 0.85, c.Confidence, 1e-9)
	assert.Equal(t, "owner", c.Description)

	_, ok = decodeCandidate(json.RawMessage(`"just a string"`))
	assert.False(t, ok)
}

func TestFilterCandidates(t *testing.T) {
	elements := []json.RawMessage{
		json.RawMessage(`{"sourceTable":"orders","sourceColumn":"customer_id","targetTable":"customers","targetColumn":"id","relationshipType":"one_to_many","confidence":0.95}`),
		json.RawMessage(`{"sourceTable":"orders","sourceColumn":"x","targetTable":"customers","targetColumn":"id","relationshipType":"one_to_many","confidence":0.5}`),
		json.RawMessage(`{"sourceTable":"orders","sourceColumn":"y","targetTable":"customers","targetColumn":"id","relationshipType":"many_to_one","confidence":0.9}`),
		json.RawMessage(`{"sourceTable":"orders","sourceColumn":"z","targetTable":"customers","targetColumn":"id","relationshipType":"one_to_one","confidence":1.5}`),
		json.RawMessage(`{"sourceTable":"","sourceColumn":"z","targetTable":"customers","targetColumn":"id","relationshipType":"one_to_one","confidence":0.9}`),
		json.RawMessage(`{"sourceTable":"orders","sourceColumn":"w","targetTable":"customers","targetColumn":"id","relationshipType":"one_to_one"}`),
		json.RawMessage(`[1,2]`),
		json.RawMessage(`{"sourceTable":"orders","sourceColumn":"v","targetTable":"customers","targetColumn":"id","relationshipType":"one_to_one","confidence":0.7}`),
	}

	kept := filterCandidates(elements)

	require.Len(t, kept, 2)
	assert.Equal(t, "customer_id", kept[0].SourceColumn)
	assert.Equal(t, "v", kept[1].SourceColumn)
}
