package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

// ProcessService is the worker-side entry point: it loads a queued job,
// fetches and classifies its documents, runs the pipeline and persists
// whatever the run produced. The cost ledger is written even when the
// pipeline fails partway.
type ProcessService struct {
	jobs       ports.ExtractionJobRepository
	items      ports.MenuItemRepository
	fetcher    ports.DocumentFetcher
	classifier ports.DocumentClassifier
	pipeline   *Pipeline
	logger     *slog.Logger
}

func NewProcessService(
	jobs ports.ExtractionJobRepository,
	items ports.MenuItemRepository,
	fetcher ports.DocumentFetcher,
	classifier ports.DocumentClassifier,
	pipeline *Pipeline,
	logger *slog.Logger,
) *ProcessService {
	return &ProcessService{
		jobs:       jobs,
		items:      items,
		fetcher:    fetcher,
		classifier: classifier,
		pipeline:   pipeline,
		logger:     logger,
	}
}

func (s *ProcessService) ProcessByID(ctx context.Context, jobID string) error {
	const op = "process extraction job"

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if job.Status != domain.JobQueued {
		s.logger.Warn("skipping job in non-queued status",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)))
		return nil
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, domain.JobRunning, ""); err != nil {
		return fmt.Errorf("%s: mark running: %w", op, err)
	}

	docs, err := s.prepareDocuments(ctx, job)
	if err != nil {
		s.markFailed(ctx, jobID, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	outcome := s.pipeline.Run(ctx, jobID, docs)
	s.persistOutcome(ctx, jobID, outcome)

	if !outcome.Success {
		return fmt.Errorf("%s: %w", op, outcome.Err)
	}
	s.logger.Info("extraction job completed",
		slog.String("job_id", jobID),
		slog.Int("items", len(outcome.Items)),
		slog.Float64("cost_usd", outcome.Costs.TotalUSD),
		slog.Int64("processing_ms", outcome.ProcessingTimeMs))
	return nil
}

// prepareDocuments fetches every source document and triages it into
// its text or vision path. Classification never fails; a fetch failure
// fails the job since the pipeline cannot run on missing documents.
func (s *ProcessService) prepareDocuments(ctx context.Context, job *domain.ExtractionJob) ([]domain.PreparedDocument, error) {
	docs := make([]domain.PreparedDocument, 0, len(job.Documents))
	for _, meta := range job.Documents {
		raw, err := s.fetcher.Fetch(ctx, meta.SourceLocator)
		if err != nil {
			return nil, fmt.Errorf("fetch document %q: %w", meta.Name, err)
		}
		prepared := s.classifier.Classify(ctx, meta, raw)
		s.logger.Debug("document classified",
			slog.String("job_id", job.ID),
			slog.String("document", meta.Name),
			slog.String("kind", string(prepared.Kind)),
			slog.Float64("confidence", prepared.Confidence))
		docs = append(docs, prepared)
	}
	return docs, nil
}

// persistOutcome writes items, ledger and job result. Persistence
// failures after a finished pipeline run are logged rather than
// propagated: the model calls already happened and retrying the whole
// job would double the spend.
func (s *ProcessService) persistOutcome(ctx context.Context, jobID string, outcome domain.ExtractionOutcome) {
	if len(outcome.Ledger) > 0 {
		if err := s.items.AppendLedger(ctx, jobID, outcome.Ledger); err != nil {
			s.logger.Error("append cost ledger", slog.String("job_id", jobID), slog.Any("error", err))
		}
	}

	if !outcome.Success {
		s.markFailed(ctx, jobID, outcome.Err)
		if err := s.jobs.SaveResult(ctx, jobID, outcome.Costs, 0, outcome.ProcessingTimeMs); err != nil {
			s.logger.Error("save partial result", slog.String("job_id", jobID), slog.Any("error", err))
		}
		return
	}

	if err := s.items.SaveItems(ctx, jobID, outcome.Items); err != nil {
		s.logger.Error("save menu items", slog.String("job_id", jobID), slog.Any("error", err))
		s.markFailed(ctx, jobID, err)
		return
	}
	if err := s.jobs.SaveResult(ctx, jobID, outcome.Costs, len(outcome.Items), outcome.ProcessingTimeMs); err != nil {
		s.logger.Error("save result", slog.String("job_id", jobID), slog.Any("error", err))
	}
	if err := s.jobs.UpdateStatus(ctx, jobID, domain.JobCompleted, ""); err != nil {
		s.logger.Error("mark completed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

func (s *ProcessService) markFailed(ctx context.Context, jobID string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.jobs.UpdateStatus(ctx, jobID, domain.JobFailed, msg); err != nil {
		s.logger.Error("mark failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}
