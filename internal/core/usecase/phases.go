package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// runStructurePhase submits every document in a single high-capability
// call and decodes the discovered menu structure. Image-bearing
// documents are uploaded through the coalescing cache and referenced by
// URI instead of inline payloads.
func (p *Pipeline) runStructurePhase(
	ctx context.Context,
	jobID string,
	docs []domain.PreparedDocument,
	ledger *domain.CostLedger,
) (*domain.MenuStructure, error) {
	start := p.now()
	p.telemetry.PhaseStarted(jobID, domain.PhaseStructure, len(docs))

	parts, err := p.buildDocumentParts(ctx, docs, buildStructurePrompt(len(docs)))
	if err != nil {
		return nil, err
	}

	result, err := p.generate(ctx, jobID, domain.PhaseStructure, ports.VariantStructure, parts, ledger)
	if err != nil {
		return nil, err
	}

	structure, err := p.decoder.decodeStructure(result.Text)
	if err != nil {
		return nil, err
	}

	p.telemetry.PhaseCompleted(jobID, domain.PhaseStructure, p.now().Sub(start), len(structure.Sections))
	return structure, nil
}

// runItemPhase partitions documents into token-budgeted batches and
// extracts raw items from each batch concurrently. The rate limiter is
// the only concurrency ceiling; the orchestrator does not cap fan-out
// separately.
func (p *Pipeline) runItemPhase(
	ctx context.Context,
	jobID string,
	docs []domain.PreparedDocument,
	structure *domain.MenuStructure,
	ledger *domain.CostLedger,
) ([]domain.RawExtractedItem, error) {
	start := p.now()
	p.telemetry.PhaseStarted(jobID, domain.PhaseItems, len(docs))

	batches := partitionDocuments(docs, p.cfg.TokenBudgetPerCall)
	results := make([][]domain.RawExtractedItem, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []domain.PreparedDocument) {
			defer wg.Done()
			results[i], errs[i] = p.extractBatch(ctx, jobID, batch, structure, ledger)
		}(i, batch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var items []domain.RawExtractedItem
	for _, batch := range results {
		items = append(items, batch...)
	}
	p.telemetry.PhaseCompleted(jobID, domain.PhaseItems, p.now().Sub(start), len(items))
	return items, nil
}

func (p *Pipeline) extractBatch(
	ctx context.Context,
	jobID string,
	batch []domain.PreparedDocument,
	structure *domain.MenuStructure,
	ledger *domain.CostLedger,
) ([]domain.RawExtractedItem, error) {
	parts, err := p.buildDocumentParts(ctx, batch, buildItemsPrompt(structure))
	if err != nil {
		return nil, err
	}
	result, err := p.generate(ctx, jobID, domain.PhaseItems, ports.VariantExtract, parts, ledger)
	if err != nil {
		return nil, err
	}
	return p.decoder.decodeRawItems(result.Text)
}

// runModifierPhase enriches extracted items with modifier groups in
// fixed-size batches. Items the model reports nothing for pass through
// unchanged.
func (p *Pipeline) runModifierPhase(
	ctx context.Context,
	jobID string,
	rawItems []domain.RawExtractedItem,
	ledger *domain.CostLedger,
) ([]domain.FinalMenuItem, error) {
	start := p.now()
	p.telemetry.PhaseStarted(jobID, domain.PhaseModifiers, len(rawItems))

	items := make([]domain.FinalMenuItem, len(rawItems))
	for i, raw := range rawItems {
		items[i] = domain.FinalMenuItem{
			Name:        raw.Name,
			Description: raw.Description,
			Category:    raw.Category,
			Section:     raw.Section,
			Sizes:       raw.Sizes,
		}
	}

	batches := partitionItems(rawItems, p.cfg.ItemsPerEnrichmentBatch)
	enrichments := make([][]itemEnrichment, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []domain.RawExtractedItem) {
			defer wg.Done()
			enrichments[i], errs[i] = p.enrichBatch(ctx, jobID, batch, ledger)
		}(i, batch)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	byName := make(map[string][]domain.ModifierGroup)
	for _, batch := range enrichments {
		for _, e := range batch {
			if len(e.ModifierGroups) > 0 {
				byName[e.Name] = e.ModifierGroups
			}
		}
	}
	for i := range items {
		if groups, ok := byName[items[i].Name]; ok {
			items[i].ModifierGroups = groups
		}
	}

	p.telemetry.PhaseCompleted(jobID, domain.PhaseModifiers, p.now().Sub(start), len(items))
	return items, nil
}

func (p *Pipeline) enrichBatch(
	ctx context.Context,
	jobID string,
	batch []domain.RawExtractedItem,
	ledger *domain.CostLedger,
) ([]itemEnrichment, error) {
	parts := []ports.PromptPart{{Text: buildModifierPrompt(batch)}}
	result, err := p.generate(ctx, jobID, domain.PhaseModifiers, ports.VariantExtract, parts, ledger)
	if err != nil {
		return nil, err
	}
	return p.decoder.decodeEnrichments(result.Text)
}

// buildDocumentParts turns prepared documents into prompt parts:
// text-bearing documents inline their extracted text, image-bearing ones
// are submitted through the upload cache and referenced by remote URI.
func (p *Pipeline) buildDocumentParts(
	ctx context.Context,
	docs []domain.PreparedDocument,
	prompt string,
) ([]ports.PromptPart, error) {
	parts := []ports.PromptPart{{Text: prompt}}

	var imageDocs []domain.PreparedDocument
	for _, doc := range docs {
		if doc.Kind == domain.KindImageBearing {
			imageDocs = append(imageDocs, doc)
			continue
		}
		parts = append(parts, ports.PromptPart{
			Text: fmt.Sprintf("--- Document: %s ---\n%s", doc.Name, doc.TextContent),
		})
	}

	if len(imageDocs) > 0 {
		handles, err := p.uploads.SubmitAll(ctx, imageDocs)
		if err != nil {
			return nil, err
		}
		for i, handle := range handles {
			parts = append(parts, ports.PromptPart{
				FileURI:  handle.RemoteURI,
				MimeType: imageDocs[i].MediaType,
			})
		}
	}
	return parts, nil
}
