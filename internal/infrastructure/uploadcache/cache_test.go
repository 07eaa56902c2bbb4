package uploadcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

type storeFake struct {
	mu      sync.Mutex
	calls   int32
	block   chan struct{}
	failIDs map[string]error
}

func (f *storeFake) Upload(_ context.Context, doc domain.PreparedDocument) (domain.UploadedFileHandle, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	err := f.failIDs[doc.ID]
	f.mu.Unlock()
	if err != nil {
		return domain.UploadedFileHandle{}, err
	}
	return domain.UploadedFileHandle{
		DocumentID: doc.ID,
		RemoteURI:  "files/" + doc.ID,
		RemoteName: doc.Name,
		SizeBytes:  int64(len(doc.TextContent)),
		UploadedAt: time.Now(),
	}, nil
}

func TestSubmitCoalescesConcurrentCalls(t *testing.T) {
	fake := &storeFake{block: make(chan struct{})}
	cache := New(fake)
	doc := domain.PreparedDocument{ID: "doc-1", Name: "menu.pdf"}

	const callers = 8
	var wg sync.WaitGroup
	handles := make([]domain.UploadedFileHandle, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = cache.Submit(context.Background(), doc)
		}(i)
	}

	// Let every caller reach the cache before the single upload finishes.
	time.Sleep(20 * time.Millisecond)
	close(fake.block)
	wg.Wait()

	if got := atomic.LoadInt32(&fake.calls); got != 1 {
		t.Fatalf("expected exactly 1 remote upload, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatalf("caller %d got a different handle: %+v vs %+v", i, handles[i], handles[0])
		}
	}
}

func TestSubmitSequentialHitsCache(t *testing.T) {
	fake := &storeFake{}
	cache := New(fake)
	doc := domain.PreparedDocument{ID: "doc-1"}

	first, err := cache.Submit(context.Background(), doc)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := cache.Submit(context.Background(), doc)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if atomic.LoadInt32(&fake.calls) != 1 {
		t.Fatalf("expected one remote call, got %d", fake.calls)
	}
	if first != second {
		t.Fatalf("expected identical handles, got %+v vs %+v", first, second)
	}
}

func TestSubmitFailureClearsInFlightState(t *testing.T) {
	fake := &storeFake{failIDs: map[string]error{"doc-1": errors.New("boom")}}
	cache := New(fake)
	doc := domain.PreparedDocument{ID: "doc-1"}

	if _, err := cache.Submit(context.Background(), doc); !domain.IsKind(err, domain.ErrUploadFailed) {
		t.Fatalf("expected upload-failed kind, got %v", err)
	}

	fake.mu.Lock()
	delete(fake.failIDs, "doc-1")
	fake.mu.Unlock()

	if _, err := cache.Submit(context.Background(), doc); err != nil {
		t.Fatalf("retry after failure should re-submit, got %v", err)
	}
	if atomic.LoadInt32(&fake.calls) != 2 {
		t.Fatalf("expected two remote calls across failure+retry, got %d", fake.calls)
	}
}

func TestSubmitAllDistinctDocumentsRunConcurrently(t *testing.T) {
	fake := &storeFake{block: make(chan struct{})}
	cache := New(fake)
	docs := []domain.PreparedDocument{{ID: "a"}, {ID: "b"}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := cache.SubmitAll(context.Background(), docs); err != nil {
			t.Errorf("submit all: %v", err)
		}
	}()

	// Both uploads must be in flight at once; neither blocks the other.
	deadline := time.After(time.Second)
	for atomic.LoadInt32(&fake.calls) != 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 concurrent uploads, saw %d", atomic.LoadInt32(&fake.calls))
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(fake.block)
	<-done
}

func TestEvictOlderThan(t *testing.T) {
	fake := &storeFake{}
	cache := New(fake)
	base := time.Now()
	cache.now = func() time.Time { return base }

	if _, err := cache.Submit(context.Background(), domain.PreparedDocument{ID: "old"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cache.mu.Lock()
	handle := cache.completed["old"]
	handle.UploadedAt = base.Add(-2 * time.Hour)
	cache.completed["old"] = handle
	cache.mu.Unlock()

	if removed := cache.EvictOlderThan(time.Hour); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if stats := cache.Stats(); stats.Count != 0 {
		t.Fatalf("expected empty cache after eviction, got %+v", stats)
	}
}
