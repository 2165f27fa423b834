package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/macabanto/wordnet/internal/pkg/frontier"
)

// fakeFetcher scripts fetch outcomes so worker tests never touch the network.
type fakeFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

type workerFixture struct {
	worker   *Worker
	frontier *frontier.Queue
	store    *fakeStore
	fetcher  *fakeFetcher
}

func newTestWorker(t *testing.T, fetcher *fakeFetcher, cfg PacingConfig) *workerFixture {
	t.Helper()
	fr, _ := newTestFrontier(t)
	st := &fakeStore{existing: map[string]bool{}}
	pool, _ := newTestPool(t)

	w := NewWorker(1, discardLogger(), fr, pool, fetcher, st, NewPacer(cfg, 42), nil)
	return &workerFixture{worker: w, frontier: fr, store: st, fetcher: fetcher}
}

func queueContents(t *testing.T, fr *frontier.Queue) []string {
	t.Helper()
	ctx := context.Background()
	var out []string
	for {
		term, err := fr.Pop(ctx)
		if errors.Is(err, frontier.ErrEmpty) {
			return out
		}
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		out = append(out, term)
	}
}

func TestWorker_ProcessesTermEndToEnd(t *testing.T) {
	fx := newTestWorker(t, &fakeFetcher{body: []byte(happyPage)}, testPacing())
	ctx := context.Background()

	if err := fx.frontier.Push(ctx, "Happy"); err != nil {
		t.Fatalf("seed frontier: %v", err)
	}
	if err := fx.worker.Iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	// 页面有两个义项，都要入库，词条名是归一化后的形式。
	if len(fx.store.entries) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(fx.store.entries))
	}
	for _, e := range fx.store.entries {
		if e.Term != "happy" {
			t.Errorf("stored term = %q, want %q", e.Term, "happy")
		}
	}

	// 两个义项的同义词都进了 frontier，跨义项去重。
	got := queueContents(t, fx.frontier)
	want := []string{"glad", "joyful", "well chosen", "fortunate"}
	if len(got) != len(want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("queue[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWorker_EmptyQueueIsNotAnError(t *testing.T) {
	fx := newTestWorker(t, &fakeFetcher{}, testPacing())

	for i := 0; i < 6; i++ {
		if err := fx.worker.Iterate(context.Background()); err != nil {
			t.Fatalf("iterate %d: %v", i, err)
		}
	}
	if fx.worker.consecutiveEmpty != 6 {
		t.Errorf("consecutive empty = %d, want 6", fx.worker.consecutiveEmpty)
	}
	if fx.fetcher.calls != 0 {
		t.Errorf("expected no fetches on an empty queue, got %d", fx.fetcher.calls)
	}
}

func TestWorker_GivesUpOnFetchFailure(t *testing.T) {
	cfg := testPacing()
	cfg.GiveUpProbability = 1
	fx := newTestWorker(t, &fakeFetcher{err: ErrAttemptsExhausted}, cfg)
	ctx := context.Background()

	fx.frontier.Push(ctx, "happy")
	if err := fx.worker.Iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if len(fx.store.entries) != 0 {
		t.Errorf("expected nothing stored, got %d", len(fx.store.entries))
	}
	if got := queueContents(t, fx.frontier); len(got) != 0 {
		t.Errorf("expected term abandoned, queue = %v", got)
	}
}

func TestWorker_RequeuesOnFetchFailure(t *testing.T) {
	cfg := testPacing()
	cfg.GiveUpProbability = 0
	fx := newTestWorker(t, &fakeFetcher{err: ErrAttemptsExhausted}, cfg)
	ctx := context.Background()

	fx.frontier.Push(ctx, "happy")
	if err := fx.worker.Iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	got := queueContents(t, fx.frontier)
	if len(got) != 1 || got[0] != "happy" {
		t.Errorf("expected term requeued, queue = %v", got)
	}
}

func TestWorker_RandomSkipDropsTerm(t *testing.T) {
	cfg := testPacing()
	cfg.SkipProbability = 1
	fx := newTestWorker(t, &fakeFetcher{body: []byte(happyPage)}, cfg)
	ctx := context.Background()

	fx.frontier.Push(ctx, "happy")
	if err := fx.worker.Iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}

	if fx.fetcher.calls != 0 {
		t.Errorf("skipped term must not be fetched, got %d calls", fx.fetcher.calls)
	}
	if got := queueContents(t, fx.frontier); len(got) != 0 {
		t.Errorf("skipped term must not be requeued, queue = %v", got)
	}
}

func TestWorker_PageWithoutEntries(t *testing.T) {
	fx := newTestWorker(t, &fakeFetcher{body: []byte("<html><body></body></html>")}, testPacing())
	ctx := context.Background()

	fx.frontier.Push(ctx, "qqqq")
	if err := fx.worker.Iterate(ctx); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(fx.store.entries) != 0 {
		t.Errorf("expected nothing stored, got %d", len(fx.store.entries))
	}
}

func TestWorker_CanceledContextStopsRun(t *testing.T) {
	fx := newTestWorker(t, &fakeFetcher{}, testPacing())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fx.worker.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
