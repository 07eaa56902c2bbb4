package domain

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ExtractionJob is one requested pipeline run over a set of source
// documents.
type ExtractionJob struct {
	ID               string         `json:"id"`
	Documents        []DocumentMeta `json:"documents"`
	Status           JobStatus      `json:"status"`
	Error            string         `json:"error,omitempty"`
	Costs            CostSummary    `json:"costs"`
	ItemCount        int            `json:"item_count"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ExtractionOutcome is the pipeline's terminal result. Items is populated
// only on success, Err only on failure; the cost summary is always
// populated, including partial cost accumulated before a failure.
type ExtractionOutcome struct {
	Success          bool
	Items            []FinalMenuItem
	Structure        *MenuStructure
	Costs            CostSummary
	Ledger           []CostLedgerEntry
	ProcessingTimeMs int64
	Err              error
}
