package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// SubmitService accepts extraction requests, persists the queued job and
// hands it to the worker pool over the message queue.
type SubmitService struct {
	jobs   ports.ExtractionJobRepository
	items  ports.MenuItemRepository
	queue  ports.MessageQueue
	logger *slog.Logger
	now    func() time.Time
}

func NewSubmitService(
	jobs ports.ExtractionJobRepository,
	items ports.MenuItemRepository,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *SubmitService {
	return &SubmitService{
		jobs:   jobs,
		items:  items,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SubmitService) Submit(ctx context.Context, documents []domain.DocumentMeta) (*domain.ExtractionJob, error) {
	const op = "submit extraction job"

	if len(documents) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("no documents"))
	}
	for i, doc := range documents {
		if doc.Name == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("document %d: missing name", i))
		}
		if doc.SourceLocator == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("document %q: missing source locator", doc.Name))
		}
		if documents[i].ID == "" {
			documents[i].ID = uuid.NewString()
		}
	}

	now := s.now()
	job := &domain.ExtractionJob{
		ID:        uuid.NewString(),
		Documents: documents,
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.queue.PublishJobQueued(ctx, job.ID); err != nil {
		// The job row already exists; surface the publish failure so the
		// caller can retry instead of leaving the job silently stranded.
		return nil, fmt.Errorf("%s: publish: %w", op, err)
	}

	s.logger.Info("extraction job queued",
		slog.String("job_id", job.ID),
		slog.Int("documents", len(documents)))
	return job, nil
}

func (s *SubmitService) GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get job", fmt.Errorf("empty job id"))
	}
	return s.jobs.GetByID(ctx, id)
}

func (s *SubmitService) ListItems(ctx context.Context, jobID string) ([]domain.FinalMenuItem, error) {
	if jobID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list items", fmt.Errorf("empty job id"))
	}
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.items.ListItems(ctx, jobID)
}
