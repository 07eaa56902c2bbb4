package usecase

import (
	"encoding/json"
	"testing"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func newDecoder(t *testing.T) *responseDecoder {
	t.Helper()
	d, err := newResponseDecoder()
	if err != nil {
		t.Fatalf("newResponseDecoder: %v", err)
	}
	return d
}

func TestDecodeStructureStripsMarkdownFences(t *testing.T) {
	d := newDecoder(t)

	text := "```json\n{\"sections\":[{\"name\":\"Starters\",\"order\":0},{\"name\":\"Mains\",\"order\":1}],\"venue_signals\":\"upscale\"}\n```"
	structure, err := d.decodeStructure(text)
	if err != nil {
		t.Fatalf("decodeStructure: %v", err)
	}
	if len(structure.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(structure.Sections))
	}
	if structure.Sections[1].Name != "Mains" || structure.Sections[1].Order != 1 {
		t.Errorf("unexpected section: %+v", structure.Sections[1])
	}
	if structure.VenueSignals != "upscale" {
		t.Errorf("venue signals = %q", structure.VenueSignals)
	}
}

func TestDecodeStructureSurroundingProse(t *testing.T) {
	d := newDecoder(t)

	text := `Here is the menu structure you asked for:
{"sections":[{"name":"Drinks","order":0}]}
Let me know if you need anything else.`
	structure, err := d.decodeStructure(text)
	if err != nil {
		t.Fatalf("decodeStructure: %v", err)
	}
	if len(structure.Sections) != 1 || structure.Sections[0].Name != "Drinks" {
		t.Errorf("unexpected structure: %+v", structure)
	}
}

func TestDecodeStructureEmptySections(t *testing.T) {
	d := newDecoder(t)

	_, err := d.decodeStructure(`{"sections":[]}`)
	if err == nil {
		t.Fatal("expected error for empty sections")
	}
	if !domain.IsKind(err, domain.ErrPhaseParse) {
		t.Errorf("expected parse kind, got %v", err)
	}
}

func TestDecodeStructureNoJSON(t *testing.T) {
	d := newDecoder(t)

	_, err := d.decodeStructure("I could not find any menu in these documents.")
	if !domain.IsKind(err, domain.ErrPhaseParse) {
		t.Errorf("expected parse kind, got %v", err)
	}
}

func TestDecodeRawItemsCoercesNumericPrices(t *testing.T) {
	d := newDecoder(t)

	text := `[{"name":"Latte","category":"beverage","section":"Drinks","sizes":[{"size":"Small","price":4.5},{"size":"Large","price":5}]}]`
	items, err := d.decodeRawItems(text)
	if err != nil {
		t.Fatalf("decodeRawItems: %v", err)
	}
	if items[0].Sizes[0].Price != "4.5" {
		t.Errorf("price = %q, want 4.5", items[0].Sizes[0].Price)
	}
	if items[0].Sizes[1].Price != "5" {
		t.Errorf("price = %q, want 5", items[0].Sizes[1].Price)
	}
}

func TestDecodeRawItemsRejectsMissingFields(t *testing.T) {
	d := newDecoder(t)

	cases := map[string]string{
		"missing sizes":    `[{"name":"Latte","category":"beverage","section":"Drinks"}]`,
		"empty sizes":      `[{"name":"Latte","category":"beverage","section":"Drinks","sizes":[]}]`,
		"missing name":     `[{"category":"beverage","section":"Drinks","sizes":[{"size":"Small","price":"4.50"}]}]`,
		"unknown category": `[{"name":"Latte","category":"coffee","section":"Drinks","sizes":[{"size":"Small","price":"4.50"}]}]`,
		"bad price":        `[{"name":"Latte","category":"beverage","section":"Drinks","sizes":[{"size":"Small","price":"$4.50"}]}]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.decodeRawItems(payload)
			if err == nil {
				t.Fatal("expected error")
			}
			if !domain.IsKind(err, domain.ErrPhaseParse) {
				t.Errorf("expected parse kind, got %v", err)
			}
		})
	}
}

func TestDecodeEnrichments(t *testing.T) {
	d := newDecoder(t)

	text := `[
		{"name":"Burger","modifier_groups":[{"name":"Toppings","options":[{"name":"Bacon","price":"2.00"},{"name":"Lettuce"}]}]},
		{"name":"Fries","modifier_groups":[]}
	]`
	enrichments, err := d.decodeEnrichments(text)
	if err != nil {
		t.Fatalf("decodeEnrichments: %v", err)
	}
	if len(enrichments) != 2 {
		t.Fatalf("expected 2 enrichments, got %d", len(enrichments))
	}
	opts := enrichments[0].ModifierGroups[0].Options
	if opts[0].Price == nil || *opts[0].Price != "2.00" {
		t.Errorf("expected priced option, got %+v", opts[0])
	}
	if opts[1].Price != nil {
		t.Errorf("free option should have nil price, got %q", *opts[1].Price)
	}
	if len(enrichments[1].ModifierGroups) != 0 {
		t.Errorf("expected empty groups for Fries, got %+v", enrichments[1].ModifierGroups)
	}
}

func TestSanitizeModelJSONPicksEarliestOpener(t *testing.T) {
	if got := sanitizeModelJSON(`[{"a":1}] trailing prose`); got != `[{"a":1}]` {
		t.Errorf("array payload = %q", got)
	}
	if got := sanitizeModelJSON(`note: {"a":1}`); got != `{"a":1}` {
		t.Errorf("object payload = %q", got)
	}
	if got := sanitizeModelJSON("no payload here"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := map[string]string{
		"9.99":  "9.99",
		"9.990": "9.99",
		"5":     "5",
		"5.0":   "5",
		"5.10":  "5.1",
		"9.999": "9.999",
	}
	for in, want := range cases {
		if got := formatPrice(json.Number(in)); got != want {
			t.Errorf("formatPrice(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeRawItemsRejectsOverPreciseNumericPrice(t *testing.T) {
	d := newDecoder(t)

	// Sub-cent precision is a malformed price; the coercion must not
	// quietly drop digits to make it validate.
	text := `[{"name":"Latte","category":"beverage","section":"Drinks","sizes":[{"size":"Small","price":9.999}]}]`
	_, err := d.decodeRawItems(text)
	if err == nil {
		t.Fatal("expected error for over-precise price")
	}
	if !domain.IsKind(err, domain.ErrPhaseParse) {
		t.Errorf("expected parse kind, got %v", err)
	}
}
