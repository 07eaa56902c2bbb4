package domain

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseStructure Phase = "phase1_structure"
	PhaseItems     Phase = "phase2_items"
	PhaseModifiers Phase = "phase3_modifiers"
)

// Usage is the token accounting reported by the model service for a
// single call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CostLedgerEntry records one external model call. Entries are
// append-only; the ledger is the sum of its entries and is never mutated
// in place.
type CostLedgerEntry struct {
	Phase        Phase   `json:"phase"`
	APICallIndex int     `json:"api_call_index"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	TimestampMs  int64   `json:"timestamp_ms"`
}

type CostSummary struct {
	Phase1USD  float64 `json:"phase1_usd"`
	Phase2USD  float64 `json:"phase2_usd"`
	Phase3USD  float64 `json:"phase3_usd"`
	TotalUSD   float64 `json:"total_usd"`
	TotalCalls int     `json:"total_calls"`
}

// CostLedger accumulates per-call cost entries across phases. Appends are
// mutex-guarded so concurrent phase 2/3 batches can record safely.
type CostLedger struct {
	mu      sync.Mutex
	entries []CostLedgerEntry
	nextIdx int
}

func NewCostLedger() *CostLedger {
	return &CostLedger{}
}

func (l *CostLedger) Record(phase Phase, model string, usage Usage, costUSD float64, at time.Time) CostLedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := CostLedgerEntry{
		Phase:        phase,
		APICallIndex: l.nextIdx,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      costUSD,
		TimestampMs:  at.UnixMilli(),
	}
	l.nextIdx++
	l.entries = append(l.entries, entry)
	return entry
}

// Entries returns a copy of the recorded entries in append order.
func (l *CostLedger) Entries() []CostLedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CostLedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *CostLedger) Summary() CostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s CostSummary
	for _, e := range l.entries {
		switch e.Phase {
		case PhaseStructure:
			s.Phase1USD += e.CostUSD
		case PhaseItems:
			s.Phase2USD += e.CostUSD
		case PhaseModifiers:
			s.Phase3USD += e.CostUSD
		}
		s.TotalUSD += e.CostUSD
		s.TotalCalls++
	}
	return s
}
