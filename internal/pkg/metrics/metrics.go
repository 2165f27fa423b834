package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 爬虫核心指标。所有 worker 进程共用同一组名称，通过 worker_id 日志区分来源。
var (
	// TermsProcessedTotal 按结果统计处理过的词条。
	// result: saved / no_entries / fetch_failed / skipped / requeued
	TermsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordnet_terms_processed_total",
		Help: "Terms popped from the frontier, by processing result.",
	}, []string{"result"})

	EntriesInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_entries_inserted_total",
		Help: "Entries successfully persisted to the document store.",
	})

	InsertDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_insert_duplicates_total",
		Help: "Inserts rejected by the store as duplicate keys (non-fatal).",
	})

	InsertErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_insert_errors_total",
		Help: "Inserts that failed for reasons other than duplicate keys.",
	})

	// FetchRetriesTotal 按原因统计重试。
	// reason: rate_limited / proxy_error / forbidden / network
	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordnet_fetch_retries_total",
		Help: "Fetch attempts that ended in a retryable outcome, by reason.",
	}, []string{"reason"})

	ProxyRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_proxy_rotations_total",
		Help: "Times a worker switched to a different proxy.",
	})

	ProxyQuarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_proxy_quarantined_total",
		Help: "Proxies moved to the quarantine pool after repeated failures.",
	})

	ProxyRecycledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_proxy_recycled_total",
		Help: "Quarantined proxies recycled back into the active pool.",
	})

	FrontierPushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_frontier_pushed_total",
		Help: "Novel terms pushed onto the frontier by the expander.",
	})

	FrontierDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wordnet_frontier_depth",
		Help: "Last observed length of the word queue.",
	})

	// ProxyPoolSize pool: active / quarantined
	ProxyPoolSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wordnet_proxy_pool_size",
		Help: "Last observed size of the proxy pools.",
	}, []string{"pool"})

	RateLimitWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wordnet_ratelimit_wait_seconds",
		Help:    "Time spent waiting on the shared politeness rate limiter.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	RateLimitTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordnet_ratelimit_timeouts_total",
		Help: "Rate limiter waits aborted by context cancellation.",
	})
)
