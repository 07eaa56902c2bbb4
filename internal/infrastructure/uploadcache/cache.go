// Package uploadcache deduplicates submissions of prepared documents to
// the external model service's file storage. Concurrent submissions for
// the same document id coalesce onto a single remote upload.
package uploadcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

type inflight struct {
	done   chan struct{}
	handle domain.UploadedFileHandle
	err    error
}

type Cache struct {
	store ports.FileStore
	now   func() time.Time

	mu        sync.Mutex
	completed map[string]domain.UploadedFileHandle
	pending   map[string]*inflight
}

func New(store ports.FileStore) *Cache {
	return &Cache{
		store:     store,
		now:       time.Now,
		completed: make(map[string]domain.UploadedFileHandle),
		pending:   make(map[string]*inflight),
	}
}

// Submit returns the cached handle for doc's id, joins an in-flight
// upload for it, or starts a new one. A failed upload clears its
// in-flight entry so a later retry can re-submit.
func (c *Cache) Submit(ctx context.Context, doc domain.PreparedDocument) (domain.UploadedFileHandle, error) {
	c.mu.Lock()
	if handle, ok := c.completed[doc.ID]; ok {
		c.mu.Unlock()
		return handle, nil
	}
	if op, ok := c.pending[doc.ID]; ok {
		c.mu.Unlock()
		select {
		case <-op.done:
			return op.handle, op.err
		case <-ctx.Done():
			return domain.UploadedFileHandle{}, ctx.Err()
		}
	}

	op := &inflight{done: make(chan struct{})}
	c.pending[doc.ID] = op
	c.mu.Unlock()

	handle, err := c.store.Upload(ctx, doc)

	c.mu.Lock()
	delete(c.pending, doc.ID)
	if err == nil {
		c.completed[doc.ID] = handle
	}
	c.mu.Unlock()

	op.handle = handle
	if err != nil {
		op.err = domain.WrapError(domain.ErrUploadFailed, "upload document "+doc.ID, err)
	}
	close(op.done)
	return op.handle, op.err
}

// SubmitAll fans out Submit for every document concurrently and waits for
// all of them to settle. The first error observed is returned; handles
// are only returned when every submission succeeded.
func (c *Cache) SubmitAll(ctx context.Context, docs []domain.PreparedDocument) ([]domain.UploadedFileHandle, error) {
	handles := make([]domain.UploadedFileHandle, len(docs))
	errs := make([]error, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc domain.PreparedDocument) {
			defer wg.Done()
			handles[i], errs[i] = c.Submit(ctx, doc)
		}(i, doc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return handles, nil
}

// EvictOlderThan drops completed handles uploaded before the cutoff and
// reports how many were removed. Periodic cleanup, not correctness.
func (c *Cache) EvictOlderThan(maxAge time.Duration) int {
	cutoff := c.now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, handle := range c.completed {
		if handle.UploadedAt.Before(cutoff) {
			delete(c.completed, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("upload_cache_evicted", "removed", removed, "remaining", len(c.completed))
	}
	return removed
}

type Stats struct {
	Count         int           `json:"count"`
	TotalBytes    int64         `json:"total_bytes"`
	AverageAge    time.Duration `json:"average_age"`
	InFlightCount int           `json:"in_flight_count"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Count: len(c.completed), InFlightCount: len(c.pending)}
	if stats.Count == 0 {
		return stats
	}
	var ageSum time.Duration
	now := c.now()
	for _, handle := range c.completed {
		stats.TotalBytes += handle.SizeBytes
		ageSum += now.Sub(handle.UploadedAt)
	}
	stats.AverageAge = ageSum / time.Duration(stats.Count)
	return stats
}
