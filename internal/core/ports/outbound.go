package ports

import (
	"context"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// ExtractionJobRepository persists job state across the api/worker split.
type ExtractionJobRepository interface {
	Create(ctx context.Context, job *domain.ExtractionJob) error
	GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, costs domain.CostSummary, itemCount int, processingTimeMs int64) error
}

// MenuItemRepository persists the pipeline's final items and its cost
// ledger. The persistence collaborator owns relational layout; the
// pipeline only hands results over.
type MenuItemRepository interface {
	SaveItems(ctx context.Context, jobID string, items []domain.FinalMenuItem) error
	ListItems(ctx context.Context, jobID string) ([]domain.FinalMenuItem, error)
	AppendLedger(ctx context.Context, jobID string, entries []domain.CostLedgerEntry) error
}

// MessageQueue publishes/consumes extraction job events.
type MessageQueue interface {
	PublishJobQueued(ctx context.Context, jobID string) error
	SubscribeJobQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentFetcher downloads source document bytes by locator. The
// pipeline never assumes bytes are pre-loaded.
type DocumentFetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// DocumentClassifier triages a source document into its text or OCR
// path. Implementations never fail hard: unrecoverable extraction errors
// degrade to an image-bearing, zero-confidence result.
type DocumentClassifier interface {
	Classify(ctx context.Context, meta domain.DocumentMeta, raw []byte) domain.PreparedDocument
}

// FileStore submits a document payload to the external model service's
// file storage for vision-path consumption.
type FileStore interface {
	Upload(ctx context.Context, doc domain.PreparedDocument) (domain.UploadedFileHandle, error)
}

// UploadCoordinator deduplicates and coalesces FileStore submissions so
// at most one upload per document id is ever in flight.
type UploadCoordinator interface {
	Submit(ctx context.Context, doc domain.PreparedDocument) (domain.UploadedFileHandle, error)
	SubmitAll(ctx context.Context, docs []domain.PreparedDocument) ([]domain.UploadedFileHandle, error)
	EvictOlderThan(maxAge time.Duration) int
}

// ModelVariant selects an external model by capability tier.
type ModelVariant string

const (
	VariantStructure ModelVariant = "structure" // high capability, low throughput
	VariantExtract   ModelVariant = "extract"   // high throughput
)

type PromptPart struct {
	Text       string
	InlineData []byte
	MimeType   string
	FileURI    string
}

type GenerateRequest struct {
	Variant         ModelVariant
	Parts           []PromptPart
	MaxOutputTokens int
}

type GenerateResult struct {
	Text  string
	Usage domain.Usage
}

// Generator is the external multimodal generation service. It may fail
// with network, quota, or service errors and must always be called
// through a CallScheduler.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	ModelName(variant ModelVariant) string
}

// CallScheduler throttles calls to one model variant under its
// requests-per-minute and tokens-per-minute budgets. Schedule blocks the
// caller until dispatch is allowed, runs task, and reports the actual
// token usage back into the window.
type CallScheduler interface {
	Schedule(ctx context.Context, estimatedTokens int, task func(context.Context) (domain.Usage, error)) error
}

// SchedulerSet resolves the scheduler for a model variant.
type SchedulerSet interface {
	For(variant ModelVariant) CallScheduler
}

// TelemetrySink receives structured pipeline events. Rendering is the
// logging collaborator's concern.
type TelemetrySink interface {
	PhaseStarted(jobID string, phase domain.Phase, documents int)
	PhaseCompleted(jobID string, phase domain.Phase, elapsed time.Duration, itemCount int)
	CallRecorded(jobID string, entry domain.CostLedgerEntry)
	PipelineFailed(jobID string, phase domain.Phase, costs domain.CostSummary, err error)
}
