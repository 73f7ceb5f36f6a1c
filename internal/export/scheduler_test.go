package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gallery/internal/domain"
)

// trackingFetcher serves canned outcomes and records concurrency.
type trackingFetcher struct {
	delay    time.Duration
	failIDs  map[string]bool
	inFlight int32
	peak     int32
	calls    int32
}

func (f *trackingFetcher) Fetch(ctx context.Context, ref domain.AssetRef) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failIDs[ref.ID] {
		return nil, errors.New("fetch failed after 3 attempts: unexpected status 503")
	}
	return []byte("bytes-" + ref.ID), nil
}

type memorySink struct {
	mu      sync.Mutex
	entries map[string][]byte
	err     error
}

func (m *memorySink) append(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[name] = data
	return nil
}

func manyRefs(n int) []domain.AssetRef {
	refs := make([]domain.AssetRef, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, domain.AssetRef{
			ID:            fmt.Sprintf("a%d", i),
			Filename:      fmt.Sprintf("a%d.jpg", i),
			RemoteLocator: fmt.Sprintf("k/a%d.jpg", i),
		})
	}
	return refs
}

func TestSchedulerDeliversAllAssets(t *testing.T) {
	fetcher := &trackingFetcher{}
	sink := &memorySink{}
	sched := NewScheduler(fetcher, NewStage(nil, zerolog.Nop()), 5, zerolog.Nop())

	res, err := sched.Run(context.Background(), manyRefs(12), nil, nil, sink.append)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SuccessCount != 12 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v, want 12 successes", res)
	}
	if len(sink.entries) != 12 {
		t.Fatalf("archive entries = %d, want 12", len(sink.entries))
	}
	if string(sink.entries["a3.jpg"]) != "bytes-a3" {
		t.Fatalf("entry a3.jpg = %q", sink.entries["a3.jpg"])
	}
}

func TestSchedulerRespectsConcurrencyCeiling(t *testing.T) {
	fetcher := &trackingFetcher{delay: 20 * time.Millisecond}
	sink := &memorySink{}
	sched := NewScheduler(fetcher, NewStage(nil, zerolog.Nop()), 5, zerolog.Nop())

	if _, err := sched.Run(context.Background(), manyRefs(30), nil, nil, sink.append); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak := atomic.LoadInt32(&fetcher.peak); peak > 5 {
		t.Fatalf("peak concurrency = %d, want <= 5", peak)
	}
}

func TestSchedulerAggregatesFailures(t *testing.T) {
	fetcher := &trackingFetcher{failIDs: map[string]bool{"a1": true, "a3": true}}
	sink := &memorySink{}
	sched := NewScheduler(fetcher, NewStage(nil, zerolog.Nop()), 5, zerolog.Nop())

	res, err := sched.Run(context.Background(), manyRefs(5), nil, nil, sink.append)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SuccessCount != 3 {
		t.Fatalf("SuccessCount = %d, want 3", res.SuccessCount)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(res.Failures))
	}
	if len(sink.entries) != res.SuccessCount {
		t.Fatalf("archive entries = %d, want %d", len(sink.entries), res.SuccessCount)
	}
	for _, f := range res.Failures {
		if f.Reason == "" {
			t.Fatalf("failure %q has empty reason", f.Filename)
		}
		if !strings.HasSuffix(f.Filename, ".jpg") {
			t.Fatalf("failure filename = %q", f.Filename)
		}
	}
}

func TestSchedulerSinkErrorAbortsBatch(t *testing.T) {
	fetcher := &trackingFetcher{}
	sink := &memorySink{err: errors.New("broken pipe")}
	sched := NewScheduler(fetcher, NewStage(nil, zerolog.Nop()), 2, zerolog.Nop())

	_, err := sched.Run(context.Background(), manyRefs(20), nil, nil, sink.append)
	if err == nil {
		t.Fatal("Run succeeded, want abort")
	}
	if !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("error = %q", err)
	}
}

func TestSchedulerStopsAdmittingOnCancel(t *testing.T) {
	fetcher := &trackingFetcher{delay: 30 * time.Millisecond}
	sink := &memorySink{}
	sched := NewScheduler(fetcher, NewStage(nil, zerolog.Nop()), 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := sched.Run(ctx, manyRefs(50), nil, nil, sink.append)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	// Only the pipelines admitted before cancellation may have started.
	if calls := atomic.LoadInt32(&fetcher.calls); calls >= 50 {
		t.Fatalf("fetch calls = %d, cancellation did not stop admission", calls)
	}
}
