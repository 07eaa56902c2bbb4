package domain

import (
	"math"
	"strconv"
	"strings"
)

// MenuSection is one section discovered during structure discovery.
type MenuSection struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// MenuStructure is the phase 1 result: the section outline plus free-form
// venue signals (cuisine, price tier, service style). Immutable once
// produced; phase 2 batches extract against it.
type MenuStructure struct {
	Sections     []MenuSection `json:"sections"`
	VenueSignals string        `json:"venue_signals,omitempty"`
}

type SizeOption struct {
	Size  string `json:"size"`
	Price string `json:"price"`
}

type ModifierOption struct {
	Name  string  `json:"name"`
	Price *string `json:"price,omitempty"`
}

type ModifierGroup struct {
	Name    string           `json:"name"`
	Options []ModifierOption `json:"options"`
}

// RawExtractedItem is a phase 2 item before modifier enrichment and
// vocabulary normalization.
type RawExtractedItem struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category"`
	Section     string       `json:"section"`
	Sizes       []SizeOption `json:"sizes"`
}

type FinalMenuItem struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category"`
	Section        string          `json:"section"`
	Sizes          []SizeOption    `json:"sizes"`
	ModifierGroups []ModifierGroup `json:"modifier_groups,omitempty"`
}

// Controlled vocabularies. Every FinalMenuItem.Category must be one of
// ItemCategories; every size must be one of ItemSizes or be carried as a
// "Size" modifier group instead.
var (
	ItemCategories = []string{"appetizer", "entree", "side", "dessert", "beverage", "alcohol", "other"}
	ItemSizes      = []string{"Kids", "Small", "Regular", "Medium", "Large", "Family"}
)

const (
	DefaultCategory   = "other"
	DefaultSize       = "Regular"
	SizeModifierGroup = "Size"
)

func IsKnownCategory(category string) bool {
	for _, c := range ItemCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func IsKnownSize(size string) bool {
	for _, s := range ItemSizes {
		if strings.EqualFold(s, size) {
			return true
		}
	}
	return false
}

// CanonicalSize maps a vocabulary size to its canonical casing.
func CanonicalSize(size string) string {
	for _, s := range ItemSizes {
		if strings.EqualFold(s, size) {
			return s
		}
	}
	return size
}

// NormalizeItem enforces the vocabulary invariants on a final item:
// off-vocabulary categories collapse to DefaultCategory and
// off-vocabulary sizes move into a "Size" modifier group with the item
// keeping a single DefaultSize entry priced at the cheapest listed size.
func NormalizeItem(item FinalMenuItem) FinalMenuItem {
	if !IsKnownCategory(item.Category) {
		item.Category = DefaultCategory
	} else {
		item.Category = strings.ToLower(item.Category)
	}

	known := make([]SizeOption, 0, len(item.Sizes))
	var offVocab []SizeOption
	for _, s := range item.Sizes {
		if IsKnownSize(s.Size) {
			known = append(known, SizeOption{Size: CanonicalSize(s.Size), Price: s.Price})
			continue
		}
		offVocab = append(offVocab, s)
	}

	if len(offVocab) > 0 {
		options := make([]ModifierOption, 0, len(offVocab))
		base := ""
		for _, s := range offVocab {
			price := s.Price
			options = append(options, ModifierOption{Name: s.Size, Price: &price})
			if base == "" || lessPrice(s.Price, base) {
				base = s.Price
			}
		}
		item.ModifierGroups = append(item.ModifierGroups, ModifierGroup{
			Name:    SizeModifierGroup,
			Options: options,
		})
		if len(known) == 0 {
			known = []SizeOption{{Size: DefaultSize, Price: base}}
		}
	}
	if len(known) == 0 {
		known = []SizeOption{{Size: DefaultSize, Price: ""}}
	}
	item.Sizes = known
	return item
}

func lessPrice(a, b string) bool {
	return priceCents(a) < priceCents(b)
}

// priceCents parses a plain decimal price with up to two fractional
// digits ("9.5", "12.00") into cents. Malformed input sorts last so a
// parseable price always wins a cheapest-of comparison.
func priceCents(s string) int64 {
	whole, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || n < 0 {
		return math.MaxInt64
	}
	cents := n * 100
	if frac == "" {
		return cents
	}
	if len(frac) > 2 {
		return math.MaxInt64
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return math.MaxInt64
	}
	return cents + f
}
