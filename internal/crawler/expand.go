package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/macabanto/wordnet/internal/pkg/frontier"
	"github.com/macabanto/wordnet/internal/pkg/metrics"
	"github.com/macabanto/wordnet/internal/store"
)

// Expander filters synonym candidates down to genuinely novel terms and
// feeds them back into the frontier.
type Expander struct {
	frontier *frontier.Queue
	store    store.EntryStore
	logger   *slog.Logger
}

// NewExpander creates an expander over the shared frontier and store.
func NewExpander(fr *frontier.Queue, st store.EntryStore, logger *slog.Logger) *Expander {
	return &Expander{frontier: fr, store: st, logger: logger}
}

// Expand normalizes each candidate, drops the ones that are malformed,
// already queued, or already stored, then pushes the survivors in a single
// bulk push. It returns how many terms were queued.
//
// The queue snapshot is advisory: another worker can push the same term
// between the snapshot and our push. That race is tolerated; a duplicate
// crawl just produces another stored entry.
func (e *Expander) Expand(ctx context.Context, candidates []string) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	queued, err := e.frontier.Snapshot(ctx)
	if err != nil {
		e.logger.Error("frontier snapshot failed", slog.String("error", err.Error()))
		queued = map[string]struct{}{}
	}

	var batch []string
	for _, raw := range candidates {
		term := NormalizeTerm(raw)
		if !IsCandidate(term) {
			continue
		}
		if _, ok := queued[term]; ok {
			continue
		}
		exists, err := e.store.Exists(ctx, term)
		if err != nil {
			// 查不出来就当它已存在，宁可少抓也不要让错误词条进队列。
			e.logger.Error("exists check failed",
				slog.String("term", term),
				slog.String("error", err.Error()))
			continue
		}
		if exists {
			continue
		}
		batch = append(batch, term)
		queued[term] = struct{}{}
	}

	if len(batch) == 0 {
		return 0, nil
	}
	if err := e.frontier.Push(ctx, batch...); err != nil {
		return 0, fmt.Errorf("push new terms: %w", err)
	}
	metrics.FrontierPushedTotal.Add(float64(len(batch)))

	sample := batch
	if len(sample) > 3 {
		sample = sample[:3]
	}
	e.logger.Info("queued new terms",
		slog.Int("count", len(batch)),
		slog.Any("sample", sample))
	return len(batch), nil
}
