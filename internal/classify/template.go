// Package classify sends bounded batches of raw records through a
// generative model and parses the structured classification back out.
package classify

import "fmt"

// Category is one entry in a template's closed taxonomy.
type Category struct {
	Key         string `json:"key" yaml:"key"`
	Label       string `json:"label" yaml:"label"` // Display label, may be localized
	Description string `json:"description" yaml:"description"`
}

// Template defines the taxonomy and filtering rules for one project.
// Category order doubles as the sort precedence for the final artifact.
type Template struct {
	Name       string     `json:"name" yaml:"name"`
	Categories []Category `json:"categories" yaml:"categories"`
	// Drop lists category keys excluded from the final artifact after
	// classification. Dropped items still count toward token usage.
	Drop []string `json:"drop" yaml:"drop"`
}

// CatchAllCategory is the key the model assigns when nothing fits.
const CatchAllCategory = "other"

// DefaultTemplate is the game-community feedback taxonomy.
var DefaultTemplate = Template{
	Name: "game-feedback",
	Categories: []Category{
		{Key: "cheating", Label: "外挂作弊", Description: "Cheating, botting, or exploit reports"},
		{Key: "performance", Label: "游戏优化", Description: "Performance, lag, or optimization complaints"},
		{Key: "bugs", Label: "游戏Bug", Description: "Functional defects and crashes"},
		{Key: "billing", Label: "充值退款", Description: "Payment, top-up, and refund issues"},
		{Key: "suggestions", Label: "玩家建议", Description: "Feature requests and player suggestions"},
		{Key: CatchAllCategory, Label: "其他", Description: "Everything else"},
	},
	Drop: []string{CatchAllCategory},
}

// catalog maps project names to templates. Lookup falls back to the
// default template for the empty string or an unknown project.
var catalog = map[string]Template{
	"":                   DefaultTemplate,
	DefaultTemplate.Name: DefaultTemplate,
}

// TemplateFor returns the template for a project name.
func TemplateFor(project string) Template {
	if t, ok := catalog[project]; ok {
		return t
	}
	return DefaultTemplate
}

// CategoryKeys returns the template's category keys in declared order.
func (t Template) CategoryKeys() []string {
	keys := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		keys[i] = c.Key
	}
	return keys
}

// Rank returns a category's position in the precedence order, or
// len(categories) for keys outside the declared set so they sort last.
func (t Template) Rank(categoryKey string) int {
	for i, c := range t.Categories {
		if c.Key == categoryKey {
			return i
		}
	}
	return len(t.Categories)
}

// ShouldDrop reports whether a category is excluded from the artifact.
func (t Template) ShouldDrop(categoryKey string) bool {
	for _, k := range t.Drop {
		if k == categoryKey {
			return true
		}
	}
	return false
}

// Validate checks the template is internally consistent.
func (t Template) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("template %q has no categories", t.Name)
	}
	seen := make(map[string]bool)
	for _, c := range t.Categories {
		if c.Key == "" {
			return fmt.Errorf("template %q has a category with no key", t.Name)
		}
		if seen[c.Key] {
			return fmt.Errorf("template %q duplicates category %q", t.Name, c.Key)
		}
		seen[c.Key] = true
	}
	for _, k := range t.Drop {
		if !seen[k] {
			return fmt.Errorf("template %q drops undeclared category %q", t.Name, k)
		}
	}
	return nil
}
