package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Item is one classified record.
type Item struct {
	Text      string `json:"text"`
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	Language  string `json:"language"`
	Analysis  string `json:"analysis"`
}

// ResponseSchema builds the JSON schema for a batch response, with the
// category enum taken from the template.
func ResponseSchema(tmpl Template) json.RawMessage {
	schema := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "The original feedback text",
				},
				"category": map[string]any{
					"type":        "string",
					"enum":        tmpl.CategoryKeys(),
					"description": "Category key from the provided taxonomy",
				},
				"sentiment": map[string]any{
					"type": "string",
					"enum": []string{"positive", "negative", "neutral"},
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Lowercase ISO 639-1 language code",
				},
				"analysis": map[string]any{
					"type":        "string",
					"description": "One-sentence analysis in English",
				},
			},
			"required": []string{"text", "category", "sentiment", "language", "analysis"},
		},
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("marshaling response schema: %v", err))
	}
	return raw
}

// ParseError indicates a batch response could not be parsed as a valid
// classification array. The whole batch is dropped.
type ParseError struct {
	Batch int
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing classification response for batch %d: %v", e.Batch, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// parseItems parses model output into items, with lightweight recovery
// for markdown code fences and surrounding prose. A response that
// validates against the schema is taken as-is; otherwise each array
// entry is salvaged individually, skipping malformed ones and coercing
// out-of-set categories to the catch-all.
func parseItems(tmpl Template, content string) ([]Item, error) {
	raw, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}

	schema, err := compileSchema(ResponseSchema(tmpl))
	if err != nil {
		return nil, err
	}

	if schema.Validate(doc) == nil {
		var items []Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decoding validated response: %w", err)
		}
		return items, nil
	}

	// Per-entry salvage.
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	declared := make(map[string]bool)
	for _, k := range tmpl.CategoryKeys() {
		declared[k] = true
	}
	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		var item Item
		if err := json.Unmarshal(entry, &item); err != nil {
			continue
		}
		if item.Text == "" || item.Category == "" {
			continue
		}
		if !declared[item.Category] {
			item.Category = CatchAllCategory
		}
		items = append(items, item)
	}
	return items, nil
}

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("loading response schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling response schema: %w", err)
	}
	return schema, nil
}

// extractJSONArray pulls a JSON array out of model output that may be
// wrapped in code fences or surrounding text.
func extractJSONArray(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	for _, candidate := range candidates {
		start := strings.Index(candidate, "[")
		end := strings.LastIndex(candidate, "]")
		if start < 0 || end < start {
			continue
		}
		candidate = candidate[start : end+1]
		var parsed []any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, fmt.Errorf("no JSON array found in response")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
