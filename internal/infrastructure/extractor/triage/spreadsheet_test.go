package triage

import (
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]string{
		"A1": "Item", "B1": "Price",
		"A2": "Burger", "B2": "9.99",
		"A3": "Caesar Salad", "B3": "7.25",
	}
	for cell, value := range cells {
		if err := f.SetCellValue("Sheet1", cell, value); err != nil {
			t.Fatalf("set cell: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestClassifySpreadsheetAlwaysTextBearing(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	prepared := c.Classify(context.Background(), domain.DocumentMeta{
		ID:        "doc-xlsx",
		Name:      "menu.xlsx",
		MediaType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, buildWorkbook(t))

	if prepared.Kind != domain.KindTextBearing {
		t.Fatalf("spreadsheets never need OCR, got %s", prepared.Kind)
	}
	if !strings.Contains(prepared.TextContent, "Burger\t9.99") {
		t.Fatalf("expected tab-delimited rows, got %q", prepared.TextContent)
	}
	if !strings.Contains(prepared.TextContent, "Caesar Salad") {
		t.Fatalf("missing row content: %q", prepared.TextContent)
	}
}

func TestClassifyCorruptSpreadsheetDegrades(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	prepared := c.Classify(context.Background(), domain.DocumentMeta{
		ID:        "doc-bad",
		Name:      "menu.xlsx",
		MediaType: "application/vnd.ms-excel",
	}, []byte("not a zip archive"))

	if prepared.Kind != domain.KindImageBearing || prepared.Confidence != 0 {
		t.Fatalf("expected zero-confidence degrade, got %+v", prepared)
	}
}
