package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/llm"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/prompts"
)

// Candidates below this confidence are dropped.
const minCandidateConfidence = 0.7

// parsedRelationships is a model reply after splitting, extraction and repair.
type parsedRelationships struct {
	Analysis string
	// Elements are the raw array elements, before filtering.
	Elements []json.RawMessage
	// Repaired is set when the array had to be repaired.
	Repaired bool
	// Failed is set when structured data was present but could not be parsed.
	Failed bool
}

// parseRelationshipResponse splits content into analysis text and the raw
// elements of the relationship array. It never fails: unparseable structured data
// yields no elements.
func parseRelationshipResponse(content string) parsedRelationships {
	analysis, structured := splitResponse(llm.StripThinking(content))
	out := parsedRelationships{Analysis: analysis}

	text := extractJSONArray(structured)
	if text == "" {
		return out
	}

	elements, repaired, ok := repairJSONArray(text)
	out.Elements = elements
	out.Repaired = repaired
	out.Failed = !ok
	return out
}

// jsonModeReply is the object returned when the model answers in JSON mode.
type jsonModeReply struct {
	Analysis      string          `json:"analysis"`
	Relationships json.RawMessage `json:"relationships"`
}

// splitResponse separates the analysis from the structured data. A JSON-mode
// object is split by its fields; otherwise the section markers are used. Without
// a structured data marker the whole reply is analysis.
func splitResponse(content string) (analysis, structured string) {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "{") {
		var reply jsonModeReply
		if err := json.Unmarshal([]byte(trimmed), &reply); err == nil {
			return strings.TrimSpace(reply.Analysis), string(reply.Relationships)
		}
		// A truncated JSON-mode object still carries the start of the array.
		if i := strings.Index(trimmed, `"relationships"`); i >= 0 {
			return analysisField(trimmed[:i]), trimmed[i:]
		}
	}

	structIdx := strings.Index(trimmed, prompts.StructuredDataMarker)
	if structIdx < 0 {
		return strings.TrimSpace(strings.Replace(trimmed, prompts.AnalysisMarker, "", 1)), ""
	}

	head := trimmed[:structIdx]
	if i := strings.Index(head, prompts.AnalysisMarker); i >= 0 {
		head = head[i+len(prompts.AnalysisMarker):]
	}
	return strings.TrimSpace(head), strings.TrimSpace(trimmed[structIdx+len(prompts.StructuredDataMarker):])
}

var analysisFieldPattern = regexp.MustCompile(`(?s)"analysis"\s*:\s*("(?:[^"\\]|\\.)*")`)

// analysisField reads the analysis string out of the head of a broken JSON object.
func analysisField(head string) string {
	m := analysisFieldPattern.FindStringSubmatch(head)
	if m == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(m[1]), &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSONArray returns the JSON array in text: the content of a fenced block
// when present, sliced from the first '[' to the last ']'. With no closing ']' the
// slice runs to the end of text, which is the truncated case.
func extractJSONArray(text string) string {
	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else if i := strings.Index(text, "```"); i >= 0 {
		// Unclosed fence: the reply was cut off inside the block.
		text = strings.TrimPrefix(text[i+3:], "json")
	}

	start := strings.Index(text, "[")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(text, "]")
	if end < start {
		return strings.TrimSpace(text[start:])
	}
	return text[start : end+1]
}

// Repair runs as a small state machine. Each step is a plain function so it can
// be tested on its own.
type repairState int

const (
	stateCheckBalance repairState = iota
	stateStripDangling
	stateTruncateToLastObject
	stateReclose
	stateReparse
	stateGiveUp
)

// repairJSONArray parses text as a JSON array, repairing it first when its
// brackets are unbalanced. repaired reports whether any repair step ran.
func repairJSONArray(text string) (elements []json.RawMessage, repaired bool, ok bool) {
	state := stateCheckBalance
	for {
		switch state {
		case stateCheckBalance:
			if checkBalance(text) {
				state = stateReparse
			} else {
				repaired = true
				state = stateStripDangling
			}
		case stateStripDangling:
			text = stripDangling(text)
			state = stateTruncateToLastObject
		case stateTruncateToLastObject:
			truncated, found := truncateToLastObject(text)
			if !found {
				state = stateGiveUp
				continue
			}
			text = truncated
			state = stateReclose
		case stateReclose:
			text = reclose(text)
			state = stateReparse
		case stateReparse:
			parsed, err := reparse(text)
			if err != nil {
				state = stateGiveUp
				continue
			}
			return parsed, repaired, true
		case stateGiveUp:
			return nil, repaired, false
		}
	}
}

// scanJSON walks text outside of string literals, calling visit for every
// structural byte. It returns whether text ends inside a string.
func scanJSON(text string, visit func(i int, c byte)) (inString bool) {
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		visit(i, c)
	}
	return inString
}

// checkBalance reports whether every bracket and brace outside strings is closed
// and no string is left open.
func checkBalance(text string) bool {
	var stack []byte
	mismatched := false
	inString := scanJSON(text, func(_ int, c byte) {
		switch c {
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opener(c) {
				mismatched = true
				return
			}
			stack = stack[:len(stack)-1]
		}
	})
	return !inString && !mismatched && len(stack) == 0
}

// stripDangling removes an unterminated string, then any trailing commas, colons
// or whitespace and a key left without its value.
func stripDangling(text string) string {
	if start, open := lastString(text); open {
		text = text[:start]
	}
	for {
		text = strings.TrimRight(text, " \t\r\n,:")
		if !strings.HasSuffix(text, `"`) {
			return text
		}
		start, _ := lastString(text)
		before := strings.TrimRight(text[:start], " \t\r\n")
		if !strings.HasSuffix(before, ",") && !strings.HasSuffix(before, "{") {
			return text
		}
		text = before
	}
}

// lastString returns the offset of the opening quote of the last string literal
// in text and whether that string is unterminated.
func lastString(text string) (start int, open bool) {
	start = -1
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if open {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				open = false
			}
			continue
		}
		if c == '"' {
			open = true
			start = i
		}
	}
	return start, open
}

// truncateToLastObject cuts text after the last object that closes directly inside
// the top-level array. found is false when no element is complete.
func truncateToLastObject(text string) (string, bool) {
	depth := 0
	last := -1
	scanJSON(text, func(i int, c byte) {
		switch c {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if c == '}' && depth == 1 {
				last = i
			}
		}
	})
	if last < 0 {
		return text, false
	}
	return text[:last+1], true
}

// reclose appends the closers for every bracket left open.
func reclose(text string) string {
	var stack []byte
	scanJSON(text, func(_ int, c byte) {
		switch c {
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	})

	var b strings.Builder
	b.WriteString(text)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String()
}

func reparse(text string) ([]json.RawMessage, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

func opener(closer byte) byte {
	if closer == ']' {
		return '['
	}
	return '{'
}

// decodeCandidate reads one array element. Keys may be camelCase or snake_case,
// the kind may be named relationshipType, relationship_type or kind, and numbers
// may be strings. ok is false when the element is not an object.
func decodeCandidate(raw json.RawMessage) (models.RelationshipCandidate, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.RelationshipCandidate{}, false
	}

	get := func(keys ...string) json.RawMessage {
		for _, k := range keys {
			if v, ok := fields[k]; ok {
				return v
			}
		}
		return nil
	}
	str := func(keys ...string) string {
		return strings.TrimSpace(jsonutil.FlexibleStringValue(get(keys...)))
	}

	c := models.RelationshipCandidate{
		SourceTable:  str("sourceTable", "source_table"),
		SourceColumn: str("sourceColumn", "source_column"),
		TargetTable:  str("targetTable", "target_table"),
		TargetColumn: str("targetColumn", "target_column"),
		Kind:         normalizeCardinality(str("relationshipType", "relationship_type", "kind", "cardinality")),
		Description:  str("description", "reasoning"),
		Example:      str("example"),
	}
	confidence, ok := jsonutil.FlexibleFloatValue(get("confidence"))
	if !ok {
		confidence = -1
	}
	c.Confidence = confidence
	return c, true
}

func normalizeCardinality(s string) models.Cardinality {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return models.Cardinality(s)
}

// acceptCandidate keeps a candidate whose identity is complete, whose kind is known
// and whose confidence is within [0.7, 1.0]. Out-of-range confidences are rejected.
func acceptCandidate(c models.RelationshipCandidate) bool {
	if c.SourceTable == "" || c.SourceColumn == "" || c.TargetTable == "" || c.TargetColumn == "" {
		return false
	}
	if !models.IsValidCardinality(c.Kind) {
		return false
	}
	return c.Confidence >= minCandidateConfidence && c.Confidence <= 1.0
}

// filterCandidates decodes and filters elements one by one; a malformed element
// never affects the others.
func filterCandidates(elements []json.RawMessage) []models.RelationshipCandidate {
	var out []models.RelationshipCandidate
	for _, raw := range elements {
		c, ok := decodeCandidate(raw)
		if !ok || !acceptCandidate(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
