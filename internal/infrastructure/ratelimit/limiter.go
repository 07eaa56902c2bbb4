// Package ratelimit paces outgoing calls to the external model service.
// One Limiter guards one model variant with its own requests-per-minute
// and tokens-per-minute window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

const (
	window   = time.Minute
	minSleep = time.Second
)

type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

type Limiter struct {
	variant ports.ModelVariant
	limits  Limits
	pacer   *rate.Limiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu           sync.Mutex
	requestCount int
	tokenCount   int
	resetAt      time.Time
}

func New(variant ports.ModelVariant, limits Limits) *Limiter {
	if limits.RequestsPerMinute <= 0 {
		limits.RequestsPerMinute = 1
	}
	if limits.TokensPerMinute <= 0 {
		limits.TokensPerMinute = 1
	}
	interval := window / time.Duration(limits.RequestsPerMinute)
	return &Limiter{
		variant: variant,
		limits:  limits,
		pacer:   rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Schedule blocks until the variant's window has room for one request
// plus estimatedTokens, paces the dispatch to the minimum inter-request
// interval, then runs task. The window decision is made under the mutex
// so two concurrent callers can never both observe "under budget" and
// fire in the same instant; waiters drain in arrival order through the
// pacer's reservation queue.
func (l *Limiter) Schedule(ctx context.Context, estimatedTokens int, task func(context.Context) (domain.Usage, error)) error {
	if estimatedTokens > l.limits.TokensPerMinute {
		estimatedTokens = l.limits.TokensPerMinute
	}

	if err := l.reserveWindow(ctx, estimatedTokens); err != nil {
		return err
	}

	now := l.now()
	if delay := l.pacer.ReserveN(now, 1).DelayFrom(now); delay > 0 {
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}

	usage, err := task(ctx)
	if err != nil {
		return err
	}
	l.reconcile(estimatedTokens, usage)
	return nil
}

func (l *Limiter) reserveWindow(ctx context.Context, estimatedTokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := l.now()
		if !now.Before(l.resetAt) {
			l.requestCount = 0
			l.tokenCount = 0
			l.resetAt = now.Add(window)
		}
		if l.requestCount < l.limits.RequestsPerMinute && l.tokenCount+estimatedTokens <= l.limits.TokensPerMinute {
			l.requestCount++
			l.tokenCount += estimatedTokens
			return nil
		}

		wait := l.resetAt.Sub(now)
		if wait < minSleep {
			wait = minSleep
		}
		slog.Debug("rate_limit_wait",
			"variant", string(l.variant),
			"wait_ms", wait.Milliseconds(),
			"requests", l.requestCount,
			"tokens", l.tokenCount,
		)
		// The lock stays held through the wait: the next queued caller
		// re-checks only after this one has dispatched or given up.
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reconcile replaces the conservative estimate with the actual billed
// tokens when the call finished inside the same window.
//
// It takes the same mutex a sleeping reserver holds, so a finished
// call's Schedule return can be delayed until that reserver dispatches
// or the window resets. If the window has elapsed by then the
// adjustment is dropped: the counters already restarted from zero and
// applying a stale delta would under-count the new window. Both effects
// only ever add latency or hold tokens reserved, never over-admit.
func (l *Limiter) reconcile(estimatedTokens int, usage domain.Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.now().Before(l.resetAt) {
		l.tokenCount += usage.InputTokens + usage.OutputTokens - estimatedTokens
		if l.tokenCount < 0 {
			l.tokenCount = 0
		}
	}
}

type Stats struct {
	Variant           ports.ModelVariant `json:"variant"`
	RequestCount      int                `json:"request_count"`
	TokenCount        int                `json:"token_count"`
	RequestsPerMinute int                `json:"requests_per_minute"`
	TokensPerMinute   int                `json:"tokens_per_minute"`
	ResetAt           time.Time          `json:"reset_at"`
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Variant:           l.variant,
		RequestCount:      l.requestCount,
		TokenCount:        l.tokenCount,
		RequestsPerMinute: l.limits.RequestsPerMinute,
		TokensPerMinute:   l.limits.TokensPerMinute,
		ResetAt:           l.resetAt,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Set owns one limiter per configured model variant.
type Set struct {
	mu       sync.Mutex
	limiters map[ports.ModelVariant]*Limiter
}

func NewSet(limits map[ports.ModelVariant]Limits) *Set {
	set := &Set{limiters: make(map[ports.ModelVariant]*Limiter, len(limits))}
	for variant, l := range limits {
		set.limiters[variant] = New(variant, l)
	}
	return set
}

func (s *Set) For(variant ports.ModelVariant) ports.CallScheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[variant]; ok {
		return l
	}
	// Unknown variants get a strict single-call-per-minute limiter
	// rather than an unlimited path.
	l := New(variant, Limits{RequestsPerMinute: 1, TokensPerMinute: 10000})
	s.limiters[variant] = l
	return l
}

func (s *Set) Stats() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stats, 0, len(s.limiters))
	for _, l := range s.limiters {
		out = append(out, l.Stats())
	}
	return out
}
