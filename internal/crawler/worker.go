package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/macabanto/wordnet/internal/pkg/frontier"
	"github.com/macabanto/wordnet/internal/pkg/metrics"
	"github.com/macabanto/wordnet/internal/pkg/proxypool"
	"github.com/macabanto/wordnet/internal/pkg/ratelimit"
	"github.com/macabanto/wordnet/internal/store"
)

// Worker 驱动一轮完整的抓取循环：
// 取词 → 抓取 → 解析 → 入库 → 扩展 frontier。
//
// 多个 Worker 之间唯一共享的是 Redis 里的队列/代理池和词条存储；
// sticky 代理、HTTP 会话、随机策略都是每个 Worker 自己的状态，
// 所以 Worker 之间不需要任何锁。
type Worker struct {
	id       int
	logger   *slog.Logger
	frontier *frontier.Queue
	pool     *proxypool.Pool
	fetcher  TermFetcher
	store    store.EntryStore
	expander *Expander
	pacer    *Pacer
	limiter  *ratelimit.Limiter // nil 表示不限流

	consecutiveEmpty int
}

// NewWorker wires one crawl loop together. limiter may be nil.
func NewWorker(
	id int,
	logger *slog.Logger,
	fr *frontier.Queue,
	pool *proxypool.Pool,
	fetcher TermFetcher,
	st store.EntryStore,
	pacer *Pacer,
	limiter *ratelimit.Limiter,
) *Worker {
	workerLogger := logger.With(slog.Int("worker_id", id))
	return &Worker{
		id:       id,
		logger:   workerLogger,
		frontier: fr,
		pool:     pool,
		fetcher:  fetcher,
		store:    st,
		expander: NewExpander(fr, st, workerLogger),
		pacer:    pacer,
		limiter:  limiter,
	}
}

// Run executes the crawl loop until ctx is canceled. Unclassified errors are
// logged, followed by a recovery sleep; the loop itself never gives up.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.Iterate(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			w.logger.Error("unexpected error in worker loop", slog.String("error", err.Error()))
			if serr := sleepCtx(ctx, w.pacer.RecoveryWait()); serr != nil {
				return serr
			}
		}
	}
}

// Iterate pops and processes at most one term. A non-nil return only means
// "unexpected"; expected conditions (empty queue, fetch failure, duplicate
// insert) are handled inside and return nil.
func (w *Worker) Iterate(ctx context.Context) error {
	term, err := w.frontier.Pop(ctx)
	if errors.Is(err, frontier.ErrEmpty) {
		w.consecutiveEmpty++
		if w.consecutiveEmpty >= w.pacer.cfg.EmptyLongAfter {
			active, quarantined := w.pool.Stats(ctx)
			w.logger.Info("queue empty, sleeping longer",
				slog.Int("consecutive", w.consecutiveEmpty),
				slog.Int64("proxies_active", active),
				slog.Int64("proxies_quarantined", quarantined))
		} else {
			w.logger.Debug("queue empty")
		}
		return sleepCtx(ctx, w.pacer.EmptyQueueWait(w.consecutiveEmpty))
	}
	if err != nil {
		return err
	}
	w.consecutiveEmpty = 0

	term = NormalizeTerm(term)
	if term == "" {
		return nil
	}

	if w.pacer.SkipTerm() {
		w.logger.Info("randomly skipping term", slog.String("term", term))
		metrics.TermsProcessedTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	w.logger.Info("processing term", slog.String("term", term))

	if err := w.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ratelimit.ErrWaitAborted) {
			return ctx.Err()
		}
		// 限流器出错不致命，继续本轮。
		w.logger.Error("rate limiter acquire failed", slog.String("error", err.Error()))
	}
	if err := sleepCtx(ctx, w.pacer.PreFetch()); err != nil {
		return err
	}

	body, err := w.fetcher.Fetch(ctx, term)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.pacer.GiveUp() {
			w.logger.Warn("giving up on term after failures",
				slog.String("term", term),
				slog.String("error", err.Error()))
			metrics.TermsProcessedTotal.WithLabelValues("fetch_failed").Inc()
		} else {
			w.logger.Info("requeueing term for a later attempt", slog.String("term", term))
			if pushErr := w.frontier.Push(ctx, term); pushErr != nil {
				w.logger.Error("requeue term failed", slog.String("error", pushErr.Error()))
			}
			metrics.TermsProcessedTotal.WithLabelValues("requeued").Inc()
		}
		return nil
	}

	entries, err := ParseEntries(term, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %q: %w", term, err)
	}
	if len(entries) == 0 {
		w.logger.Warn("no entries found", slog.String("term", term))
		metrics.TermsProcessedTotal.WithLabelValues("no_entries").Inc()
		return nil
	}

	saved := 0
	newTerms := 0
	for i := range entries {
		if err := w.store.Insert(ctx, &entries[i]); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// 主键由存储生成，理论上不该发生；记一笔即可。
				w.logger.Warn("duplicate entry", slog.String("term", term))
				metrics.InsertDuplicatesTotal.Inc()
			} else {
				w.logger.Error("insert entry failed",
					slog.String("term", term),
					slog.String("error", err.Error()))
				metrics.InsertErrorsTotal.Inc()
			}
			continue
		}
		saved++
		metrics.EntriesInsertedTotal.Inc()

		n, expErr := w.expander.Expand(ctx, entries[i].Synonyms)
		if expErr != nil {
			w.logger.Error("expand frontier failed", slog.String("error", expErr.Error()))
		}
		newTerms += n
	}

	active, quarantined := w.pool.Stats(ctx)
	if depth, err := w.frontier.Len(ctx); err == nil {
		metrics.FrontierDepth.Set(float64(depth))
	}
	w.logger.Info("term processed",
		slog.String("term", term),
		slog.Int("saved", saved),
		slog.Int("entries", len(entries)),
		slog.Int("new_terms", newTerms),
		slog.Int64("proxies_active", active),
		slog.Int64("proxies_quarantined", quarantined))
	metrics.TermsProcessedTotal.WithLabelValues("saved").Inc()

	return sleepCtx(ctx, w.pacer.PostPersist(saved == len(entries)))
}
