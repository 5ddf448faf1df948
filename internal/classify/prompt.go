package classify

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(userPromptTmpl))

// SystemPrompt returns the classification system prompt.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the user prompt for one batch of entries.
func UserPrompt(tmpl Template, entries []string) string {
	var buf bytes.Buffer
	data := struct {
		Categories []Category
		Entries    []string
	}{Categories: tmpl.Categories, Entries: entries}
	if err := userTemplate.Execute(&buf, data); err != nil {
		// Fallback to raw template on error
		return userPromptTmpl
	}
	return buf.String()
}
