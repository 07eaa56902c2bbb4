package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// ModelPricing is the per-variant price table in USD per million tokens.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

type PipelineConfig struct {
	// TokenBudgetPerCall caps the estimated input size of one phase 2
	// batch. TokenEstimatePerCall is the conservative reserve handed to
	// the rate limiter before actual usage is known.
	TokenBudgetPerCall      int
	TokenEstimatePerCall    int
	ItemsPerEnrichmentBatch int
	MaxOutputTokens         int
	Pricing                 map[ports.ModelVariant]ModelPricing
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		TokenBudgetPerCall:      12000,
		TokenEstimatePerCall:    8000,
		ItemsPerEnrichmentBatch: 20,
		MaxOutputTokens:         16384,
		Pricing: map[ports.ModelVariant]ModelPricing{
			ports.VariantStructure: {InputPerMTok: 1.25, OutputPerMTok: 10.00},
			ports.VariantExtract:   {InputPerMTok: 0.10, OutputPerMTok: 0.40},
		},
	}
}

func (c PipelineConfig) normalize() PipelineConfig {
	def := DefaultPipelineConfig()
	if c.TokenBudgetPerCall <= 0 {
		c.TokenBudgetPerCall = def.TokenBudgetPerCall
	}
	if c.TokenEstimatePerCall <= 0 {
		c.TokenEstimatePerCall = def.TokenEstimatePerCall
	}
	if c.ItemsPerEnrichmentBatch <= 0 {
		c.ItemsPerEnrichmentBatch = def.ItemsPerEnrichmentBatch
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = def.MaxOutputTokens
	}
	if c.Pricing == nil {
		c.Pricing = def.Pricing
	}
	return c
}

// Pipeline is the three-phase extraction orchestrator:
// structure discovery, batched item extraction, modifier enrichment.
// No phase is skipped; a failure halts the remaining phases and the
// partially accumulated cost ledger is always preserved in the outcome.
type Pipeline struct {
	uploads    ports.UploadCoordinator
	schedulers ports.SchedulerSet
	generator  ports.Generator
	telemetry  ports.TelemetrySink
	decoder    *responseDecoder
	cfg        PipelineConfig
	now        func() time.Time
}

func NewPipeline(
	uploads ports.UploadCoordinator,
	schedulers ports.SchedulerSet,
	generator ports.Generator,
	telemetry ports.TelemetrySink,
	cfg PipelineConfig,
) (*Pipeline, error) {
	decoder, err := newResponseDecoder()
	if err != nil {
		return nil, fmt.Errorf("compile response schemas: %w", err)
	}
	return &Pipeline{
		uploads:    uploads,
		schedulers: schedulers,
		generator:  generator,
		telemetry:  telemetry,
		decoder:    decoder,
		cfg:        cfg.normalize(),
		now:        time.Now,
	}, nil
}

// Run executes the full pipeline over classified documents. The returned
// outcome carries the cost summary even on failure: the caller is billed
// for calls already made.
func (p *Pipeline) Run(ctx context.Context, jobID string, docs []domain.PreparedDocument) domain.ExtractionOutcome {
	start := p.now()
	ledger := domain.NewCostLedger()

	if len(docs) == 0 {
		return p.fail(jobID, domain.PhaseStructure, ledger, start,
			domain.WrapError(domain.ErrInvalidInput, "run pipeline", fmt.Errorf("no documents")))
	}

	structure, err := p.runStructurePhase(ctx, jobID, docs, ledger)
	if err != nil {
		return p.fail(jobID, domain.PhaseStructure, ledger, start, err)
	}

	rawItems, err := p.runItemPhase(ctx, jobID, docs, structure, ledger)
	if err != nil {
		return p.fail(jobID, domain.PhaseItems, ledger, start, err)
	}

	items, err := p.runModifierPhase(ctx, jobID, rawItems, ledger)
	if err != nil {
		return p.fail(jobID, domain.PhaseModifiers, ledger, start, err)
	}

	for i := range items {
		items[i] = domain.NormalizeItem(items[i])
	}

	return domain.ExtractionOutcome{
		Success:          true,
		Items:            items,
		Structure:        structure,
		Costs:            ledger.Summary(),
		Ledger:           ledger.Entries(),
		ProcessingTimeMs: p.now().Sub(start).Milliseconds(),
	}
}

func (p *Pipeline) fail(jobID string, phase domain.Phase, ledger *domain.CostLedger, start time.Time, err error) domain.ExtractionOutcome {
	costs := ledger.Summary()
	p.telemetry.PipelineFailed(jobID, phase, costs, err)
	return domain.ExtractionOutcome{
		Success:          false,
		Costs:            costs,
		Ledger:           ledger.Entries(),
		ProcessingTimeMs: p.now().Sub(start).Milliseconds(),
		Err:              err,
	}
}

// generate runs one model call behind the variant's scheduler and
// records its ledger entry on success.
func (p *Pipeline) generate(
	ctx context.Context,
	jobID string,
	phase domain.Phase,
	variant ports.ModelVariant,
	parts []ports.PromptPart,
	ledger *domain.CostLedger,
) (*ports.GenerateResult, error) {
	var result *ports.GenerateResult
	err := p.schedulers.For(variant).Schedule(ctx, p.cfg.TokenEstimatePerCall, func(ctx context.Context) (domain.Usage, error) {
		r, err := p.generator.Generate(ctx, ports.GenerateRequest{
			Variant:         variant,
			Parts:           parts,
			MaxOutputTokens: p.cfg.MaxOutputTokens,
		})
		if err != nil {
			return domain.Usage{}, err
		}
		result = r
		return r.Usage, nil
	})
	if err != nil {
		return nil, err
	}

	entry := ledger.Record(phase, p.generator.ModelName(variant), result.Usage, p.cost(variant, result.Usage), p.now())
	p.telemetry.CallRecorded(jobID, entry)
	return result, nil
}

func (p *Pipeline) cost(variant ports.ModelVariant, usage domain.Usage) float64 {
	pricing := p.cfg.Pricing[variant]
	return float64(usage.InputTokens)/1e6*pricing.InputPerMTok +
		float64(usage.OutputTokens)/1e6*pricing.OutputPerMTok
}
