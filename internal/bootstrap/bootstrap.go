package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/menu-extractor/internal/config"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/core/usecase"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/extractor/triage"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/ratelimit"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/uploadcache"
	"github.com/kirillkom/menu-extractor/internal/observability/logging"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	JobRepo  ports.ExtractionJobRepository
	ItemRepo ports.MenuItemRepository
	Uploads  ports.UploadCoordinator

	SubmitUC  *usecase.SubmitService
	ProcessUC *usecase.ProcessService

	closeFn func()
}

// Options carries collaborators the binaries construct themselves.
// Recorder is nil in the api binary; only the worker exports pipeline
// metrics.
type Options struct {
	Logger   *slog.Logger
	Recorder logging.PipelineRecorder
	Service  string
}

func New(ctx context.Context, cfg config.Config, options Options) (*App, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	jobRepo := postgres.NewJobRepository(db)
	if err := jobRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	itemRepo := postgres.NewMenuItemRepository(db)

	fetcher, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	table, err := config.LoadModelTable(cfg.ModelTablePath)
	if err != nil {
		return nil, fmt.Errorf("load model table: %w", err)
	}

	client := gemini.New(cfg.GeminiAPIKey, cfg.GeminiStructureModel, cfg.GeminiExtractModel, gemini.Options{
		BaseURL:            cfg.GeminiBaseURL,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})

	uploads := uploadcache.New(client)
	schedulers := ratelimit.NewSet(schedulerLimits(table))
	telemetry := logging.NewPipelineTelemetry(logger, options.Recorder, options.Service)

	pipeline, err := usecase.NewPipeline(uploads, schedulers, client, telemetry, usecase.PipelineConfig{
		TokenBudgetPerCall:      cfg.TokenBudgetPerCall,
		TokenEstimatePerCall:    cfg.TokenEstimatePerCall,
		ItemsPerEnrichmentBatch: cfg.ItemsPerEnrichmentBatch,
		MaxOutputTokens:         cfg.MaxOutputTokens,
		Pricing:                 pipelinePricing(table),
	})
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	classifier := triage.NewClassifier(triage.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		FallbackMinChars:    cfg.FallbackMinChars,
		FallbackMinWords:    cfg.FallbackMinWords,
	})

	submitUC := usecase.NewSubmitService(jobRepo, itemRepo, queue, logger)
	processUC := usecase.NewProcessService(jobRepo, itemRepo, fetcher, classifier, pipeline, logger)

	return &App{
		Config: cfg,

		Queue:    queue,
		JobRepo:  jobRepo,
		ItemRepo: itemRepo,
		Uploads:  uploads,

		SubmitUC:  submitUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func schedulerLimits(table config.ModelTable) map[ports.ModelVariant]ratelimit.Limits {
	limits := make(map[ports.ModelVariant]ratelimit.Limits, len(table.Models))
	for name, budget := range table.Models {
		limits[ports.ModelVariant(name)] = ratelimit.Limits{
			RequestsPerMinute: budget.RequestsPerMinute,
			TokensPerMinute:   budget.TokensPerMinute,
		}
	}
	return limits
}

func pipelinePricing(table config.ModelTable) map[ports.ModelVariant]usecase.ModelPricing {
	pricing := make(map[ports.ModelVariant]usecase.ModelPricing, len(table.Models))
	for name, budget := range table.Models {
		pricing[ports.ModelVariant(name)] = usecase.ModelPricing{
			InputPerMTok:  budget.InputPerMTok,
			OutputPerMTok: budget.OutputPerMTok,
		}
	}
	return pricing
}
