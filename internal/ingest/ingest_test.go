package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseImageReturnsPlaceholder(t *testing.T) {
	for _, name := range []string{"shot.png", "photo.JPG", "pic.webp"} {
		entries, err := Parse(name, []byte{0xde, 0xad})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(entries) != 1 || entries[0] != ImagePlaceholder {
			t.Errorf("%s: expected single placeholder entry, got %v", name, entries)
		}
	}
}

func TestParseCSV(t *testing.T) {
	content := []byte("feedback\nlag is bad\n\n,second column only\ncheater in ranked\n")
	entries, err := Parse("feedback.csv", content)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"feedback", "lag is bad", "second column only", "cheater in ranked"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(entries), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, entries[i], want[i])
		}
	}
}

func TestParseCSVCapsRows(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxRows+20; i++ {
		fmt.Fprintf(&b, "row %d\n", i)
	}
	entries, err := Parse("big.csv", []byte(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != maxRows {
		t.Errorf("expected cap at %d rows, got %d", maxRows, len(entries))
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "first feedback")
	f.SetCellValue("Sheet1", "A2", "")
	f.SetCellValue("Sheet1", "B2", "fallback cell")
	f.SetCellValue("Sheet1", "A3", "third feedback")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	entries, err := Parse("upload.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(entries), entries)
	}
	if entries[1] != "fallback cell" {
		t.Errorf("expected first non-empty cell, got %q", entries[1])
	}
}

func TestParseTxtLines(t *testing.T) {
	entries, err := Parse("notes.txt", []byte("one\n\n  two  \nthree"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[1] != "two" {
		t.Errorf("unexpected entries %v", entries)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("report.pdf", []byte("%PDF"))
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}
