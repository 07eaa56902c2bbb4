package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

type fakeUploads struct {
	mu      sync.Mutex
	submits int
}

func (f *fakeUploads) Submit(_ context.Context, doc domain.PreparedDocument) (domain.UploadedFileHandle, error) {
	f.mu.Lock()
	f.submits++
	f.mu.Unlock()
	return domain.UploadedFileHandle{
		DocumentID: doc.ID,
		RemoteURI:  "files/" + doc.ID,
		RemoteName: doc.Name,
	}, nil
}

func (f *fakeUploads) SubmitAll(ctx context.Context, docs []domain.PreparedDocument) ([]domain.UploadedFileHandle, error) {
	handles := make([]domain.UploadedFileHandle, len(docs))
	for i, doc := range docs {
		h, err := f.Submit(ctx, doc)
		if err != nil {
			return nil, err
		}
		handles[i] = h
	}
	return handles, nil
}

func (f *fakeUploads) EvictOlderThan(time.Duration) int { return 0 }

type passScheduler struct {
	mu        sync.Mutex
	scheduled int
	estimates []int
}

func (s *passScheduler) Schedule(ctx context.Context, estimatedTokens int, task func(context.Context) (domain.Usage, error)) error {
	s.mu.Lock()
	s.scheduled++
	s.estimates = append(s.estimates, estimatedTokens)
	s.mu.Unlock()
	_, err := task(ctx)
	return err
}

type fakeSchedulerSet struct {
	structure passScheduler
	extract   passScheduler
}

func (s *fakeSchedulerSet) For(variant ports.ModelVariant) ports.CallScheduler {
	if variant == ports.VariantStructure {
		return &s.structure
	}
	return &s.extract
}

// scriptedGenerator routes calls by prompt content: the structure,
// item and modifier prompts are distinguishable by their instructions.
type scriptedGenerator struct {
	mu            sync.Mutex
	structureResp string
	itemsResp     string
	modifiersResp string
	structureErr  error
	itemsErr      error
	modifiersErr  error
	calls         []ports.GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req ports.GenerateRequest) (*ports.GenerateResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	prompt := ""
	if len(req.Parts) > 0 {
		prompt = req.Parts[0].Text
	}
	usage := domain.Usage{InputTokens: 1000, OutputTokens: 500}
	switch {
	case strings.Contains(prompt, "section structure"):
		if g.structureErr != nil {
			return nil, g.structureErr
		}
		return &ports.GenerateResult{Text: g.structureResp, Usage: usage}, nil
	case strings.Contains(prompt, "modifier groups"):
		if g.modifiersErr != nil {
			return nil, g.modifiersErr
		}
		return &ports.GenerateResult{Text: g.modifiersResp, Usage: usage}, nil
	default:
		if g.itemsErr != nil {
			return nil, g.itemsErr
		}
		return &ports.GenerateResult{Text: g.itemsResp, Usage: usage}, nil
	}
}

func (g *scriptedGenerator) ModelName(variant ports.ModelVariant) string {
	if variant == ports.VariantStructure {
		return "model-pro"
	}
	return "model-flash"
}

type nopTelemetry struct {
	mu     sync.Mutex
	failed []domain.Phase
}

func (t *nopTelemetry) PhaseStarted(string, domain.Phase, int)                  {}
func (t *nopTelemetry) PhaseCompleted(string, domain.Phase, time.Duration, int) {}
func (t *nopTelemetry) CallRecorded(string, domain.CostLedgerEntry)             {}
func (t *nopTelemetry) PipelineFailed(_ string, phase domain.Phase, _ domain.CostSummary, _ error) {
	t.mu.Lock()
	t.failed = append(t.failed, phase)
	t.mu.Unlock()
}

func happyGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		structureResp: `{"sections":[{"name":"Entrees","order":0}],"venue_signals":"casual diner"}`,
		itemsResp:     `[{"name":"Burger","description":"with fries","category":"entree","section":"Entrees","sizes":[{"size":"Regular","price":"9.99"}]}]`,
		modifiersResp: `[{"name":"Burger","modifier_groups":[{"name":"Toppings","options":[{"name":"Cheese","price":"1.00"}]}]}]`,
	}
}

func newTestPipeline(t *testing.T, gen *scriptedGenerator) (*Pipeline, *fakeUploads, *fakeSchedulerSet, *nopTelemetry) {
	t.Helper()
	uploads := &fakeUploads{}
	schedulers := &fakeSchedulerSet{}
	telemetry := &nopTelemetry{}
	p, err := NewPipeline(uploads, schedulers, gen, telemetry, DefaultPipelineConfig())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, uploads, schedulers, telemetry
}

func textDoc(id, name, content string) domain.PreparedDocument {
	return domain.PreparedDocument{
		ID:          id,
		Name:        name,
		MediaType:   "text/plain",
		Kind:        domain.KindTextBearing,
		Confidence:  1,
		TextContent: content,
	}
}

func TestPipelineRunHappyPath(t *testing.T) {
	gen := happyGenerator()
	p, _, schedulers, _ := newTestPipeline(t, gen)

	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{
		textDoc("d1", "menu.txt", "Entrees\nBurger with fries 9.99"),
	})

	if !outcome.Success {
		t.Fatalf("expected success, got error: %v", outcome.Err)
	}
	if len(outcome.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(outcome.Items))
	}
	item := outcome.Items[0]
	if item.Name != "Burger" || item.Category != "entree" || item.Section != "Entrees" {
		t.Errorf("unexpected item: %+v", item)
	}
	if len(item.Sizes) != 1 || item.Sizes[0].Price != "9.99" {
		t.Errorf("unexpected sizes: %+v", item.Sizes)
	}
	if len(item.ModifierGroups) != 1 || item.ModifierGroups[0].Name != "Toppings" {
		t.Errorf("unexpected modifier groups: %+v", item.ModifierGroups)
	}

	if len(outcome.Ledger) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(outcome.Ledger))
	}
	if outcome.Costs.TotalCalls != 3 {
		t.Errorf("expected 3 calls, got %d", outcome.Costs.TotalCalls)
	}
	if outcome.Costs.Phase1USD <= 0 || outcome.Costs.Phase2USD <= 0 || outcome.Costs.Phase3USD <= 0 {
		t.Errorf("expected positive per-phase costs: %+v", outcome.Costs)
	}
	if outcome.Costs.TotalUSD <= outcome.Costs.Phase2USD {
		t.Errorf("total should exceed any single phase: %+v", outcome.Costs)
	}
	if schedulers.structure.scheduled != 1 {
		t.Errorf("expected 1 structure-variant call, got %d", schedulers.structure.scheduled)
	}
	if schedulers.extract.scheduled != 2 {
		t.Errorf("expected 2 extract-variant calls, got %d", schedulers.extract.scheduled)
	}
}

func TestPipelineRunStructureFailureHaltsEverything(t *testing.T) {
	gen := happyGenerator()
	gen.structureErr = domain.WrapError(domain.ErrModelService, "generate", errors.New("quota exhausted"))
	p, _, schedulers, telemetry := newTestPipeline(t, gen)

	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{
		textDoc("d1", "menu.txt", "some menu text"),
	})

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if !domain.IsKind(outcome.Err, domain.ErrModelService) {
		t.Errorf("expected model service kind, got %v", outcome.Err)
	}
	if outcome.Costs.TotalUSD != 0 || outcome.Costs.TotalCalls != 0 {
		t.Errorf("no call succeeded, costs should be zero: %+v", outcome.Costs)
	}
	if schedulers.extract.scheduled != 0 {
		t.Errorf("phase 2/3 must not run after phase 1 failure, got %d calls", schedulers.extract.scheduled)
	}
	if len(telemetry.failed) != 1 || telemetry.failed[0] != domain.PhaseStructure {
		t.Errorf("expected failure reported for structure phase, got %v", telemetry.failed)
	}
}

func TestPipelineRunItemFailureKeepsPhase1Costs(t *testing.T) {
	gen := happyGenerator()
	gen.itemsErr = errors.New("transient network failure")
	p, _, _, _ := newTestPipeline(t, gen)

	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{
		textDoc("d1", "menu.txt", "some menu text"),
	})

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if outcome.Costs.Phase1USD <= 0 {
		t.Errorf("phase 1 succeeded, its cost must be preserved: %+v", outcome.Costs)
	}
	if outcome.Costs.Phase2USD != 0 || outcome.Costs.Phase3USD != 0 {
		t.Errorf("failed phases must not accrue cost: %+v", outcome.Costs)
	}
	if len(outcome.Ledger) != 1 {
		t.Errorf("expected only the phase 1 ledger entry, got %d", len(outcome.Ledger))
	}
}

func TestPipelineRunParseFailureFailsBatch(t *testing.T) {
	gen := happyGenerator()
	gen.itemsResp = `[{"name":"Burger"}]` // missing category/section/sizes
	p, _, _, _ := newTestPipeline(t, gen)

	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{
		textDoc("d1", "menu.txt", "some menu text"),
	})

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if !domain.IsKind(outcome.Err, domain.ErrPhaseParse) {
		t.Errorf("expected parse kind, got %v", outcome.Err)
	}
}

func TestPipelineRunEmptyDocuments(t *testing.T) {
	p, _, _, _ := newTestPipeline(t, happyGenerator())

	outcome := p.Run(context.Background(), "job-1", nil)

	if outcome.Success {
		t.Fatal("expected failure")
	}
	if !domain.IsKind(outcome.Err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input kind, got %v", outcome.Err)
	}
}

func TestPipelineRunUploadsImageDocumentsOnce(t *testing.T) {
	gen := happyGenerator()
	p, uploads, _, _ := newTestPipeline(t, gen)

	imageDoc := domain.PreparedDocument{
		ID:             "img-1",
		Name:           "menu.jpg",
		MediaType:      "image/jpeg",
		Kind:           domain.KindImageBearing,
		PageCount:      1,
		RawBytesBase64: "aGVsbG8=",
	}
	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{imageDoc})

	if !outcome.Success {
		t.Fatalf("expected success, got %v", outcome.Err)
	}
	// Phase 1 and the single phase 2 batch both submit the document; the
	// coordinator fake counts raw submissions, dedup lives in the real
	// cache implementation.
	if uploads.submits != 2 {
		t.Errorf("expected 2 submissions (structure + items), got %d", uploads.submits)
	}
	for _, req := range gen.calls {
		prompt := req.Parts[0].Text
		if strings.Contains(prompt, "modifier groups") {
			continue
		}
		found := false
		for _, part := range req.Parts[1:] {
			if part.FileURI == "files/img-1" && part.MimeType == "image/jpeg" {
				found = true
			}
		}
		if !found {
			t.Errorf("document call missing file URI part: %+v", req.Parts)
		}
	}
}

func TestPipelineRunNormalizesOffVocabularySizes(t *testing.T) {
	gen := happyGenerator()
	gen.itemsResp = `[{"name":"Wings","category":"appetizer","section":"Entrees","sizes":[{"size":"6 pc","price":"7.99"},{"size":"12 pc","price":"13.99"}]}]`
	gen.modifiersResp = `[{"name":"Wings","modifier_groups":[]}]`
	p, _, _, _ := newTestPipeline(t, gen)

	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{
		textDoc("d1", "menu.txt", "wings menu"),
	})

	if !outcome.Success {
		t.Fatalf("expected success, got %v", outcome.Err)
	}
	item := outcome.Items[0]
	if len(item.Sizes) != 1 || item.Sizes[0].Size != domain.DefaultSize || item.Sizes[0].Price != "7.99" {
		t.Errorf("expected single Regular size at cheapest price, got %+v", item.Sizes)
	}
	if len(item.ModifierGroups) != 1 || item.ModifierGroups[0].Name != domain.SizeModifierGroup {
		t.Fatalf("expected Size modifier group, got %+v", item.ModifierGroups)
	}
	if len(item.ModifierGroups[0].Options) != 2 {
		t.Errorf("expected both off-vocabulary sizes as options, got %+v", item.ModifierGroups[0].Options)
	}
}

func TestPipelineGenerateRecordsEstimate(t *testing.T) {
	gen := happyGenerator()
	p, _, schedulers, _ := newTestPipeline(t, gen)

	outcome := p.Run(context.Background(), "job-1", []domain.PreparedDocument{
		textDoc("d1", "menu.txt", "text"),
	})
	if !outcome.Success {
		t.Fatalf("expected success, got %v", outcome.Err)
	}
	want := DefaultPipelineConfig().TokenEstimatePerCall
	for _, est := range schedulers.structure.estimates {
		if est != want {
			t.Errorf("structure estimate = %d, want %d", est, want)
		}
	}
	for _, est := range schedulers.extract.estimates {
		if est != want {
			t.Errorf("extract estimate = %d, want %d", est, want)
		}
	}
}

func TestPipelineItemPhaseBatchesLargeDocumentSets(t *testing.T) {
	gen := happyGenerator()
	gen.itemsResp = `[{"name":"Burger","category":"entree","section":"Entrees","sizes":[{"size":"Regular","price":"9.99"}]}]`
	p, _, schedulers, _ := newTestPipeline(t, gen)

	// Two documents big enough that each exceeds half the token budget,
	// forcing two phase 2 batches.
	big := strings.Repeat("menu text ", 4000) // ~10k tokens at 4 chars/token
	docs := []domain.PreparedDocument{
		textDoc("d1", fmt.Sprintf("menu-%d.txt", 1), big),
		textDoc("d2", fmt.Sprintf("menu-%d.txt", 2), big),
	}
	outcome := p.Run(context.Background(), "job-1", docs)

	if !outcome.Success {
		t.Fatalf("expected success, got %v", outcome.Err)
	}
	// 2 item batches + 1 modifier batch on the extract variant.
	if schedulers.extract.scheduled != 3 {
		t.Errorf("expected 3 extract-variant calls, got %d", schedulers.extract.scheduled)
	}
	if len(outcome.Items) != 2 {
		t.Errorf("expected items from both batches, got %d", len(outcome.Items))
	}
}
