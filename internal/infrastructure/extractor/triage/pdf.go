package triage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDFText runs the primary whole-document extraction. The pdf
// library panics on some malformed files; recover turns that into an
// error so the fallback strategy gets its chance.
func extractPDFText(raw []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", pages, fmt.Errorf("extract plain text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", pages, fmt.Errorf("read plain text: %w", err)
	}
	return strings.TrimSpace(buf.String()), pages, nil
}

// extractPDFTextByRows is the simplified per-page strategy: rows of
// positioned text joined with spaces and newlines. Slower and lossier,
// but survives documents where the font-aware path fails.
func extractPDFTextByRows(raw []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	pages = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(word.S)
			}
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String()), pages, nil
}
