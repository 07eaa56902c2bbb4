package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// itemEnrichment is one item's modifier payload from the enrichment
// phase, matched back to the extracted item by name.
type itemEnrichment struct {
	Name           string                 `json:"name"`
	ModifierGroups []domain.ModifierGroup `json:"modifier_groups"`
}

// responseDecoder validates model replies against compiled schemas
// before typed decoding. A reply missing required fields fails the
// whole call rather than passing through with defaulted values.
type responseDecoder struct {
	structure   *jsonschema.Schema
	rawItems    *jsonschema.Schema
	enrichments *jsonschema.Schema
}

func newResponseDecoder() (*responseDecoder, error) {
	compiler := jsonschema.NewCompiler()

	compile := func(name string, def map[string]any) (*jsonschema.Schema, error) {
		raw, err := json.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", name, err)
		}
		return compiler.Compile(name)
	}

	structure, err := compile("structure.json", structureSchema())
	if err != nil {
		return nil, err
	}
	rawItems, err := compile("raw_items.json", rawItemsSchema())
	if err != nil {
		return nil, err
	}
	enrichments, err := compile("enrichments.json", enrichmentsSchema())
	if err != nil {
		return nil, err
	}

	return &responseDecoder{
		structure:   structure,
		rawItems:    rawItems,
		enrichments: enrichments,
	}, nil
}

func (d *responseDecoder) decodeStructure(text string) (*domain.MenuStructure, error) {
	var structure domain.MenuStructure
	if err := d.decode("decode structure response", text, d.structure, &structure); err != nil {
		return nil, err
	}
	return &structure, nil
}

func (d *responseDecoder) decodeRawItems(text string) ([]domain.RawExtractedItem, error) {
	var items []domain.RawExtractedItem
	if err := d.decode("decode items response", text, d.rawItems, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *responseDecoder) decodeEnrichments(text string) ([]itemEnrichment, error) {
	var enrichments []itemEnrichment
	if err := d.decode("decode enrichments response", text, d.enrichments, &enrichments); err != nil {
		return nil, err
	}
	return enrichments, nil
}

// decode sanitizes the raw model text, validates it against the phase
// schema and unmarshals it into out. Models occasionally emit numeric
// prices despite instructions; those are coerced to strings before
// validation instead of failing the batch.
func (d *responseDecoder) decode(op, text string, schema *jsonschema.Schema, out any) error {
	payload := sanitizeModelJSON(text)
	if payload == "" {
		return domain.WrapError(domain.ErrPhaseParse, op, fmt.Errorf("no JSON payload in model response"))
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return domain.WrapError(domain.ErrPhaseParse, op, fmt.Errorf("invalid JSON: %w", err))
	}
	tree = coercePrices(tree)
	tree = normalizeNumbers(tree)

	if err := schema.Validate(tree); err != nil {
		return domain.WrapError(domain.ErrPhaseParse, op, err)
	}

	coerced, err := json.Marshal(tree)
	if err != nil {
		return domain.WrapError(domain.ErrPhaseParse, op, err)
	}
	if err := json.Unmarshal(coerced, out); err != nil {
		return domain.WrapError(domain.ErrPhaseParse, op, err)
	}
	return nil
}

// sanitizeModelJSON strips markdown fences and any surrounding prose,
// keeping the outermost JSON object or array.
func sanitizeModelJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')
	start := objStart
	end := strings.LastIndexByte(text, '}')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start = arrStart
		end = strings.LastIndexByte(text, ']')
	}
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// coercePrices rewrites numeric "price" values into decimal strings
// anywhere in the tree.
func coercePrices(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for key, val := range node {
			if key == "price" {
				if num, ok := val.(json.Number); ok {
					node[key] = formatPrice(num)
					continue
				}
			}
			node[key] = coercePrices(val)
		}
		return node
	case []any:
		for i, item := range node {
			node[i] = coercePrices(item)
		}
		return node
	default:
		return v
	}
}

// normalizeNumbers converts the remaining json.Number values into the
// float64/int64 representation the schema validator expects.
func normalizeNumbers(v any) any {
	switch node := v.(type) {
	case map[string]any:
		for key, val := range node {
			node[key] = normalizeNumbers(val)
		}
		return node
	case []any:
		for i, item := range node {
			node[i] = normalizeNumbers(item)
		}
		return node
	case json.Number:
		if i, err := node.Int64(); err == nil {
			return i
		}
		if f, err := node.Float64(); err == nil {
			return f
		}
		return node.String()
	default:
		return v
	}
}

// formatPrice trims trailing fractional zeros so "9.990" validates as
// "9.99" and "5.0" as "5". Nothing is rounded or truncated: a price
// with real precision past two decimals keeps it and is rejected by the
// schema instead of being silently altered.
func formatPrice(num json.Number) string {
	s := num.String()
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
