package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func buildStructurePrompt(documentCount int) string {
	return fmt.Sprintf(`You are analyzing %d source document(s) describing a single venue's menu.
Identify the menu's section structure before any item-level extraction.

Return ONLY a JSON object of this exact shape:
{"sections":[{"name":"<section name>","order":<0-based position>}],"venue_signals":"<short free-form notes on cuisine, price tier, service style>"}

Rules:
- List every distinct menu section in reading order.
- Do not invent sections that are not present in the documents.
- Do not include any items, prose, or markdown fences.`, documentCount)
}

func buildItemsPrompt(structure *domain.MenuStructure) string {
	var sections []string
	for _, s := range structure.Sections {
		sections = append(sections, s.Name)
	}

	return fmt.Sprintf(`Extract every menu item from the attached document(s).
The menu has these sections: %s.
Venue notes: %s

Return ONLY a JSON array of this exact shape:
[{"name":"<item>","description":"<optional>","category":"<one of: %s>","section":"<one of the sections above>","sizes":[{"size":"<one of: %s, or the literal size printed on the menu>","price":"<decimal string, e.g. 9.99>"}]}]

Rules:
- One entry per item; an item priced per size lists every size.
- An item with a single unlabeled price uses size "Regular".
- Prices are plain decimal strings without currency symbols.
- No prose, no markdown fences.`,
		strings.Join(sections, ", "),
		structure.VenueSignals,
		strings.Join(domain.ItemCategories, ", "),
		strings.Join(domain.ItemSizes, ", "))
}

func buildModifierPrompt(items []domain.RawExtractedItem) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s (%s)", item.Name, item.Section)
		if item.Description != "" {
			fmt.Fprintf(&sb, ": %s", item.Description)
		}
		sb.WriteByte('\n')
	}

	return fmt.Sprintf(`For each menu item below, list modifier groups a customer chooses from
(toppings, preparation, sides, add-ons) if the item plausibly has any.

Items:
%s
Return ONLY a JSON array of this exact shape:
[{"name":"<item name exactly as given>","modifier_groups":[{"name":"<group>","options":[{"name":"<option>","price":"<decimal string, omit when free>"}]}]}]

Rules:
- Include every item; use an empty modifier_groups array when none apply.
- Do not restate sizes already priced on the item.
- No prose, no markdown fences.`, sb.String())
}
