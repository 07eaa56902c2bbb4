package triage

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func TestClassifyPlainTextIsTextBearing(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	text := strings.Repeat("Grilled Salmon with lemon butter 18.50\n", 10)

	prepared := c.Classify(context.Background(), domain.DocumentMeta{
		ID:        "doc-1",
		Name:      "menu.txt",
		MediaType: "text/plain",
	}, []byte(text))

	if prepared.Kind != domain.KindTextBearing {
		t.Fatalf("expected text-bearing, got %s", prepared.Kind)
	}
	if prepared.TextContent == "" || prepared.RawBytesBase64 != "" {
		t.Fatalf("expected text content only, got %+v", prepared)
	}
	if prepared.Confidence < 0.3 {
		t.Fatalf("expected confidence >= 0.3, got %f", prepared.Confidence)
	}
}

func TestClassifyBrokenPDFDegradesToImage(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	prepared := c.Classify(context.Background(), domain.DocumentMeta{
		ID:        "doc-2",
		Name:      "scan.pdf",
		MediaType: "application/pdf",
	}, []byte("%PDF-1.4 not actually a pdf"))

	if prepared.Kind != domain.KindImageBearing {
		t.Fatalf("expected image-bearing degrade, got %s", prepared.Kind)
	}
	if prepared.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %f", prepared.Confidence)
	}
	if prepared.RawBytesBase64 == "" {
		t.Fatalf("expected raw bytes for the OCR path")
	}
}

func TestClassifyImagePassesThroughAsBase64(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	prepared := c.Classify(context.Background(), domain.DocumentMeta{
		ID:        "doc-3",
		Name:      "photo.jpg",
		MediaType: "image/jpeg",
	}, raw)

	if prepared.Kind != domain.KindImageBearing {
		t.Fatalf("expected image-bearing, got %s", prepared.Kind)
	}
	if prepared.TextContent != "" {
		t.Fatalf("images must not carry a text path")
	}
	if prepared.RawBytesBase64 == "" {
		t.Fatalf("expected base64 payload")
	}
}

func TestConfidencePropertyRichText(t *testing.T) {
	// Any document with >50 chars and >10 words must clear the 0.3
	// threshold regardless of token shape.
	samples := []string{
		"Burger 9.99 Fries 3.50 Soda 2.00 Salad 7.25 Wings 11.00 Pizza 14 Tacos 8",
		strings.Repeat("ab cd ef gh ij kl mn op qr st uv wx yz ", 3),
	}
	for _, text := range samples {
		chars, words := countText(text)
		if chars <= 50 || words <= 10 {
			t.Fatalf("sample does not meet premise: chars=%d words=%d", chars, words)
		}
		if score := scoreText(text, 1); score < 0.3 {
			t.Fatalf("expected score >= 0.3 for %q, got %f", text, score)
		}
	}
}

func TestConfidenceZeroForEmptyText(t *testing.T) {
	if score := scoreText("", 3); score != 0 {
		t.Fatalf("expected zero score for empty text, got %f", score)
	}
	if score := scoreText("   \n ", 1); score != 0 {
		t.Fatalf("expected zero score for whitespace-only text, got %f", score)
	}
}

func TestKindOfStripsParameters(t *testing.T) {
	if kindOf("application/pdf; charset=binary") != mediaPDF {
		t.Fatalf("expected pdf kind with parameters present")
	}
	if kindOf("IMAGE/PNG") != mediaOther {
		t.Fatalf("image types ride the default vision path")
	}
}
