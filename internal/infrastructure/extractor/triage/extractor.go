// Package triage classifies source documents into their text or OCR
// path before any model call is made. PDFs get structured text
// extraction with a confidence score, spreadsheets are flattened to
// delimited text, everything else rides the vision path as base64.
package triage

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

type Config struct {
	// ConfidenceThreshold gates the text path for PDFs. The fallback
	// minimums apply to the simplified second-chance extraction. All
	// three are empirically chosen; keep them configurable.
	ConfidenceThreshold float64
	FallbackMinChars    int
	FallbackMinWords    int
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.3,
		FallbackMinChars:    10,
		FallbackMinWords:    2,
	}
}

type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.FallbackMinChars <= 0 {
		cfg.FallbackMinChars = def.FallbackMinChars
	}
	if cfg.FallbackMinWords <= 0 {
		cfg.FallbackMinWords = def.FallbackMinWords
	}
	return &Classifier{cfg: cfg}
}

// Classify never fails: unrecoverable extraction errors degrade to an
// image-bearing, zero-confidence document so the pipeline can still
// attempt OCR through the model's vision path.
func (c *Classifier) Classify(_ context.Context, meta domain.DocumentMeta, raw []byte) domain.PreparedDocument {
	prepared := domain.PreparedDocument{
		ID:        meta.ID,
		Name:      meta.Name,
		MediaType: meta.MediaType,
	}

	switch kindOf(meta.MediaType) {
	case mediaPDF:
		return c.classifyPDF(prepared, raw)
	case mediaSpreadsheet:
		return c.classifySpreadsheet(prepared, raw)
	case mediaPlainText:
		text := strings.TrimSpace(string(raw))
		return markTextBearing(prepared, text, 1)
	default:
		return markImageBearing(prepared, raw)
	}
}

func (c *Classifier) classifyPDF(prepared domain.PreparedDocument, raw []byte) domain.PreparedDocument {
	text, pages, err := extractPDFText(raw)
	if err != nil {
		slog.Debug("pdf_primary_extraction_failed", "document_id", prepared.ID, "error", err)
		return c.classifyPDFFallback(prepared, raw)
	}

	chars, words := countText(text)
	confidence := scoreText(text, pages)
	if confidence > c.cfg.ConfidenceThreshold && chars > 0 && words > 0 {
		out := markTextBearing(prepared, text, pages)
		out.Confidence = confidence
		return out
	}

	slog.Debug("pdf_low_confidence", "document_id", prepared.ID, "confidence", confidence, "chars", chars, "words", words)
	out := markImageBearing(prepared, raw)
	out.PageCount = pages
	return out
}

// classifyPDFFallback retries with the simplified row-based strategy and
// lower absolute minimums before giving up on the text path.
func (c *Classifier) classifyPDFFallback(prepared domain.PreparedDocument, raw []byte) domain.PreparedDocument {
	text, pages, err := extractPDFTextByRows(raw)
	if err != nil {
		slog.Debug("pdf_fallback_extraction_failed", "document_id", prepared.ID, "error", err)
		return markImageBearing(prepared, raw)
	}

	chars, words := countText(text)
	if chars > c.cfg.FallbackMinChars && words > c.cfg.FallbackMinWords {
		out := markTextBearing(prepared, text, pages)
		out.Confidence = c.cfg.ConfidenceThreshold
		return out
	}
	out := markImageBearing(prepared, raw)
	out.PageCount = pages
	return out
}

func (c *Classifier) classifySpreadsheet(prepared domain.PreparedDocument, raw []byte) domain.PreparedDocument {
	text, err := flattenSpreadsheet(raw)
	if err != nil {
		slog.Debug("spreadsheet_flatten_failed", "document_id", prepared.ID, "error", err)
		return markImageBearing(prepared, raw)
	}
	// Spreadsheet content is machine text by construction; no OCR needed.
	out := markTextBearing(prepared, text, 1)
	out.Confidence = 1
	return out
}

func markTextBearing(prepared domain.PreparedDocument, text string, pages int) domain.PreparedDocument {
	chars, words := countText(text)
	prepared.Kind = domain.KindTextBearing
	prepared.TextContent = text
	prepared.CharCount = chars
	prepared.WordCount = words
	prepared.PageCount = pages
	prepared.Confidence = scoreText(text, pages)
	return prepared
}

func markImageBearing(prepared domain.PreparedDocument, raw []byte) domain.PreparedDocument {
	prepared.Kind = domain.KindImageBearing
	prepared.Confidence = 0
	prepared.TextContent = ""
	prepared.RawBytesBase64 = base64.StdEncoding.EncodeToString(raw)
	return prepared
}

type mediaKind int

const (
	mediaOther mediaKind = iota
	mediaPDF
	mediaSpreadsheet
	mediaPlainText
)

func kindOf(mediaType string) mediaKind {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return mediaPDF
	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mt == "application/vnd.ms-excel":
		return mediaSpreadsheet
	case mt == "text/csv", mt == "text/plain":
		return mediaPlainText
	default:
		return mediaOther
	}
}
