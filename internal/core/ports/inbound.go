package ports

import (
	"context"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// JobSubmitter is the inbound contract for creating extraction jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, documents []domain.DocumentMeta) (*domain.ExtractionJob, error)
}

// JobReader is the inbound read model for job state and results.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error)
	ListItems(ctx context.Context, jobID string) ([]domain.FinalMenuItem, error)
}

// JobProcessor is the inbound contract for asynchronous job execution.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
