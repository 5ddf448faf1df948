// Package ingest turns uploaded files into classification entries.
// Parsing is synchronous at submission so format errors reject the
// request before any task exists.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxRows caps how many entries an upload contributes.
const maxRows = 50

// ImagePlaceholder is the fixed content string substituted for image
// uploads. Images are not OCRed; the model is told what it got.
const ImagePlaceholder = "[image uploaded by user - content not extracted]"

// UnsupportedFormatError rejects a file whose extension has no
// handling path.
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", filepath.Ext(e.Filename))
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// Parse extracts entries from an uploaded file. The declared filename
// picks the handling path by extension; content is never sniffed.
func Parse(filename string, content []byte) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExts[ext]:
		return []string{ImagePlaceholder}, nil
	case ext == ".csv":
		return parseCSV(content)
	case ext == ".xlsx":
		return parseXLSX(content)
	case ext == ".txt":
		return parseLines(content), nil
	default:
		return nil, &UnsupportedFormatError{Filename: filename}
	}
}

// parseCSV takes the first non-empty cell of each row.
func parseCSV(content []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	var entries []string
	for len(entries) < maxRows {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if entry := firstCell(row); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func parseXLSX(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading xlsx rows: %w", err)
	}

	var entries []string
	for _, row := range rows {
		if len(entries) >= maxRows {
			break
		}
		if entry := firstCell(row); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func parseLines(content []byte) []string {
	var entries []string
	for _, line := range strings.Split(string(content), "\n") {
		if len(entries) >= maxRows {
			break
		}
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	return entries
}

func firstCell(row []string) string {
	for _, cell := range row {
		if cell = strings.TrimSpace(cell); cell != "" {
			return cell
		}
	}
	return ""
}
