package results

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/sailsonlabs/pulse/internal/classify"
)

// GroupBy selects how export rows are grouped.
type GroupBy string

const (
	GroupByLanguage GroupBy = "language"
	GroupByCategory GroupBy = "category"
)

// Format selects the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ExportError is a user-visible export failure (wrong state, missing
// structured data, bad parameters).
type ExportError struct {
	Reason string
}

func (e *ExportError) Error() string { return e.Reason }

var exportHeader = []string{"group", "text", "category", "sentiment", "language", "analysis"}

// Export renders a result's structured items as a downloadable file.
// Results without structured items predate export support and fail
// with a user-visible error.
func Export(r *Result, groupBy GroupBy, format Format) ([]byte, string, error) {
	if r.Items == nil {
		return nil, "", &ExportError{Reason: "result has no structured data to export"}
	}

	groups, order := groupItems(r.Items, groupBy)

	switch format {
	case FormatCSV:
		data, err := renderCSV(groups, order)
		return data, "text/csv", err
	case FormatXLSX:
		data, err := renderXLSX(groups, order)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	default:
		return nil, "", &ExportError{Reason: fmt.Sprintf("unsupported export format %q", format)}
	}
}

// groupItems buckets items by the grouping key, returning buckets plus
// a deterministic key order (sorted, with items inside each bucket in
// input order).
func groupItems(items []classify.Item, groupBy GroupBy) (map[string][]classify.Item, []string) {
	groups := make(map[string][]classify.Item)
	for _, item := range items {
		key := item.Language
		if groupBy == GroupByCategory {
			key = item.Category
		}
		if key == "" {
			key = "unknown"
		}
		groups[key] = append(groups[key], item)
	}
	order := make([]string, 0, len(groups))
	for key := range groups {
		order = append(order, key)
	}
	sort.Strings(order)
	return groups, order
}

func renderCSV(groups map[string][]classify.Item, order []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, key := range order {
		for _, item := range groups[key] {
			row := []string{key, item.Text, item.Category, item.Sentiment, item.Language, item.Analysis}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("writing csv row: %w", err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(groups map[string][]classify.Item, order []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for col, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing xlsx header: %w", err)
		}
	}

	rowNum := 2
	for _, key := range order {
		for _, item := range groups[key] {
			values := []string{key, item.Text, item.Category, item.Sentiment, item.Language, item.Analysis}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, fmt.Errorf("writing xlsx row: %w", err)
				}
			}
			rowNum++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serializing xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
