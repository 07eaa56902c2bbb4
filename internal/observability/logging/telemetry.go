package logging

import (
	"log/slog"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// PipelineRecorder is the metrics half of pipeline telemetry. Satisfied
// by metrics.WorkerMetrics; nil disables metric recording.
type PipelineRecorder interface {
	ObservePhase(service, phase string, duration time.Duration)
	ObserveModelCall(service, phase, model string, inputTokens, outputTokens int, costUSD float64)
	ObservePhaseFailure(service, phase string)
}

// PipelineTelemetry renders pipeline events into structured logs and,
// when a recorder is attached, Prometheus metrics.
type PipelineTelemetry struct {
	logger   *slog.Logger
	recorder PipelineRecorder
	service  string
}

func NewPipelineTelemetry(logger *slog.Logger, recorder PipelineRecorder, service string) *PipelineTelemetry {
	return &PipelineTelemetry{logger: logger, recorder: recorder, service: service}
}

func (t *PipelineTelemetry) PhaseStarted(jobID string, phase domain.Phase, documents int) {
	t.logger.Info("pipeline phase started",
		slog.String("job_id", jobID),
		slog.String("phase", string(phase)),
		slog.Int("inputs", documents))
}

func (t *PipelineTelemetry) PhaseCompleted(jobID string, phase domain.Phase, elapsed time.Duration, itemCount int) {
	t.logger.Info("pipeline phase completed",
		slog.String("job_id", jobID),
		slog.String("phase", string(phase)),
		slog.Duration("elapsed", elapsed),
		slog.Int("results", itemCount))
	if t.recorder != nil {
		t.recorder.ObservePhase(t.service, string(phase), elapsed)
	}
}

func (t *PipelineTelemetry) CallRecorded(jobID string, entry domain.CostLedgerEntry) {
	t.logger.Debug("model call recorded",
		slog.String("job_id", jobID),
		slog.String("phase", string(entry.Phase)),
		slog.String("model", entry.Model),
		slog.Int("call_index", entry.APICallIndex),
		slog.Int("input_tokens", entry.InputTokens),
		slog.Int("output_tokens", entry.OutputTokens),
		slog.Float64("cost_usd", entry.CostUSD))
	if t.recorder != nil {
		t.recorder.ObserveModelCall(t.service, string(entry.Phase), entry.Model,
			entry.InputTokens, entry.OutputTokens, entry.CostUSD)
	}
}

func (t *PipelineTelemetry) PipelineFailed(jobID string, phase domain.Phase, costs domain.CostSummary, err error) {
	t.logger.Error("pipeline failed",
		slog.String("job_id", jobID),
		slog.String("phase", string(phase)),
		slog.Float64("accrued_cost_usd", costs.TotalUSD),
		slog.Int("calls", costs.TotalCalls),
		slog.Any("error", err))
	if t.recorder != nil {
		t.recorder.ObservePhaseFailure(t.service, string(phase))
	}
}
