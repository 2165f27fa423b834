package crawler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/macabanto/wordnet/internal/model"
	"github.com/macabanto/wordnet/internal/pkg/frontier"
	"github.com/macabanto/wordnet/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeStore scripts the persistence surface for crawler tests.
type fakeStore struct {
	entries   []model.Entry
	existing  map[string]bool
	insertErr error
	existsErr error
}

func (f *fakeStore) Insert(_ context.Context, entry *model.Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeStore) Exists(_ context.Context, term string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[term], nil
}

var _ store.EntryStore = (*fakeStore)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFrontier(t *testing.T) (*frontier.Queue, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return frontier.New(rdb), rdb
}

func TestExpander_FiltersCandidates(t *testing.T) {
	fr, rdb := newTestFrontier(t)
	ctx := context.Background()

	if err := fr.Push(ctx, "queued"); err != nil {
		t.Fatalf("seed queue: %v", err)
	}
	st := &fakeStore{existing: map[string]bool{"stored": true}}

	e := NewExpander(fr, st, discardLogger())
	n, err := e.Expand(ctx, []string{
		"Glad",        // 新词，大小写归一
		"glad",        // 批内重复
		"well-chosen", // 连字符还原成空格
		"stored",      // 已入库
		"queued",      // 已在队列里
		"a",           // 太短
		"it's",        // 非字母
		"",
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 queued terms, got %d", n)
	}

	got, _ := rdb.LRange(ctx, frontier.KeyWordQueue, 0, -1).Result()
	want := []string{"queued", "glad", "well chosen"}
	if len(got) != len(want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("queue[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpander_ExistsErrorSkipsTerm(t *testing.T) {
	fr, rdb := newTestFrontier(t)
	ctx := context.Background()

	st := &fakeStore{existsErr: errors.New("storage down")}
	e := NewExpander(fr, st, discardLogger())

	// 存储查不到就当已存在，不让可疑词条进队列。
	n, err := e.Expand(ctx, []string{"glad"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing queued, got %d", n)
	}
	if depth, _ := rdb.LLen(ctx, frontier.KeyWordQueue).Result(); depth != 0 {
		t.Errorf("expected empty queue, got %d", depth)
	}
}

func TestExpander_NoCandidates(t *testing.T) {
	fr, _ := newTestFrontier(t)

	e := NewExpander(fr, &fakeStore{}, discardLogger())
	n, err := e.Expand(context.Background(), nil)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
