package assemble

import (
	"strings"
	"testing"

	"github.com/sailsonlabs/pulse/internal/classify"
)

func item(text, category string) classify.Item {
	return classify.Item{Text: text, Category: category, Sentiment: "neutral", Language: "en", Analysis: "n/a"}
}

func TestSortByCategoryPrecedence(t *testing.T) {
	items := []classify.Item{
		item("a", "other"),
		item("b", "bugs"),
		item("c", "cheating"),
		item("d", "billing"),
	}
	sorted := Sort(classify.DefaultTemplate, items)

	var got []string
	for _, it := range sorted {
		got = append(got, it.Category)
	}
	want := []string{"cheating", "bugs", "billing", "other"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order wrong: got %v, want %v", got, want)
		}
	}
}

func TestSortUnknownCategoriesLastAndStable(t *testing.T) {
	items := []classify.Item{
		item("first-unknown", "mystery"),
		item("known", "bugs"),
		item("second-unknown", "enigma"),
	}
	sorted := Sort(classify.DefaultTemplate, items)

	if sorted[0].Category != "bugs" {
		t.Errorf("declared category should sort first, got %q", sorted[0].Category)
	}
	if sorted[1].Text != "first-unknown" || sorted[2].Text != "second-unknown" {
		t.Errorf("unknown categories must keep input order: %q then %q", sorted[1].Text, sorted[2].Text)
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	items := []classify.Item{item("z", "other"), item("a", "cheating")}
	Sort(classify.DefaultTemplate, items)
	if items[0].Text != "z" {
		t.Error("input slice was mutated")
	}
}

func TestRenderHTMLEscapesAndIndexes(t *testing.T) {
	items := []classify.Item{
		item("<script>alert(1)</script>", "bugs"),
		item("second row", "billing"),
	}
	out := RenderHTML(classify.DefaultTemplate, items)

	if strings.Contains(out, "<script>") {
		t.Error("cell content must be escaped")
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Error("escaped content missing")
	}
	if !strings.Contains(out, "<td>1</td>") || !strings.Contains(out, "<td>2</td>") {
		t.Error("1-based row index missing")
	}
	if !strings.Contains(out, `<table class="table table-hover">`) {
		t.Error("table wrapper missing")
	}
	// Category keys render as display labels.
	if !strings.Contains(out, "游戏Bug") {
		t.Error("category label missing")
	}
}

func TestAssembleDeterministic(t *testing.T) {
	items := []classify.Item{
		item("a", "suggestions"),
		item("b", "cheating"),
		item("c", "cheating"),
	}
	first := Assemble(classify.DefaultTemplate, items)
	second := Assemble(classify.DefaultTemplate, items)
	if first != second {
		t.Error("assembly must be deterministic")
	}
	// b precedes c (stable) and both precede a.
	bIdx := strings.Index(first, "<td>b</td>")
	cIdx := strings.Index(first, "<td>c</td>")
	aIdx := strings.Index(first, "<td>a</td>")
	if !(bIdx < cIdx && cIdx < aIdx) {
		t.Errorf("sorted row order wrong: b=%d c=%d a=%d", bIdx, cIdx, aIdx)
	}
}

func TestAssembleEmptyItems(t *testing.T) {
	out := Assemble(classify.DefaultTemplate, nil)
	if !strings.Contains(out, "<tbody>") {
		t.Error("empty artifact should still render a table")
	}
	if strings.Contains(out, "<td>") {
		t.Error("empty artifact should have no data rows")
	}
}
