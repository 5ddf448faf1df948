// Package assemble renders the final artifact for a completed task:
// classified items sorted by category precedence into an HTML table.
// Everything here is pure; same input, same bytes out.
package assemble

import (
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/sailsonlabs/pulse/internal/classify"
)

// Sort orders items by the template's category precedence. Categories
// outside the declared set sort last. The sort is stable: relative
// input order is preserved among equal keys.
func Sort(tmpl classify.Template, items []classify.Item) []classify.Item {
	sorted := make([]classify.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return tmpl.Rank(sorted[i].Category) < tmpl.Rank(sorted[j].Category)
	})
	return sorted
}

var columns = []string{"#", "内容", "分类", "情感", "语言", "分析"}

// RenderHTML renders sorted items as an HTML table, one row per item
// with a 1-based index. Cell content is escaped.
func RenderHTML(tmpl classify.Template, items []classify.Item) string {
	labels := make(map[string]string, len(tmpl.Categories))
	for _, c := range tmpl.Categories {
		labels[c.Key] = c.Label
	}

	var b strings.Builder
	b.WriteString(`<table class="table table-hover">` + "\n<thead>\n<tr>")
	for _, col := range columns {
		b.WriteString("<th>" + html.EscapeString(col) + "</th>")
	}
	b.WriteString("</tr>\n</thead>\n<tbody>\n")

	for i, item := range items {
		label := labels[item.Category]
		if label == "" {
			label = item.Category
		}
		b.WriteString("<tr>")
		b.WriteString("<td>" + strconv.Itoa(i+1) + "</td>")
		b.WriteString("<td>" + html.EscapeString(item.Text) + "</td>")
		b.WriteString("<td>" + html.EscapeString(label) + "</td>")
		b.WriteString("<td>" + html.EscapeString(item.Sentiment) + "</td>")
		b.WriteString("<td>" + html.EscapeString(item.Language) + "</td>")
		b.WriteString("<td>" + html.EscapeString(item.Analysis) + "</td>")
		b.WriteString("</tr>\n")
	}

	b.WriteString("</tbody>\n</table>")
	return b.String()
}

// Assemble sorts items and renders the artifact in one step.
func Assemble(tmpl classify.Template, items []classify.Item) string {
	return RenderHTML(tmpl, Sort(tmpl, items))
}
