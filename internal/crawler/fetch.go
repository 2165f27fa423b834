package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/macabanto/wordnet/internal/config"
	"github.com/macabanto/wordnet/internal/pkg/metrics"
	"github.com/macabanto/wordnet/internal/pkg/proxypool"
)

var (
	// ErrBadStatus means the site answered with a status the retry table has
	// no recovery for; the term is abandoned for this cycle.
	ErrBadStatus = errors.New("unexpected http status")
	// ErrAttemptsExhausted means the per-term attempt budget ran out.
	ErrAttemptsExhausted = errors.New("fetch attempts exhausted")
)

// fetchOutcome classifies one HTTP response per the retry policy table.
type fetchOutcome int

const (
	outcomeOK          fetchOutcome = iota
	outcomeRateLimited              // 429: back off, keep proxy and session
	outcomeProxyError               // 407/502/503/504: mark failed, rotate proxy
	outcomeForbidden                // 403: proxy likely burned, rotate proxy and session
	outcomeFatal                    // anything else: abandon this attempt chain
)

func classifyStatus(code int) fetchOutcome {
	switch code {
	case http.StatusOK:
		return outcomeOK
	case http.StatusTooManyRequests:
		return outcomeRateLimited
	case http.StatusProxyAuthRequired, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return outcomeProxyError
	case http.StatusForbidden:
		return outcomeForbidden
	default:
		return outcomeFatal
	}
}

// TermFetcher fetches the raw page for one term. The worker only depends on
// this surface, so tests can script fetch outcomes.
type TermFetcher interface {
	Fetch(ctx context.Context, term string) ([]byte, error)
}

// Fetcher performs proxy-routed HTTP fetches with the crawl loop's
// retry/backoff/rotation policy. It caches one http.Client per sticky proxy
// (session affinity) and drops it whenever the proxy rotates.
//
// A Fetcher belongs to one worker and is not safe for concurrent use.
type Fetcher struct {
	pool        *proxypool.Pool
	pacer       *Pacer
	logger      *slog.Logger
	baseURL     string
	timeout     time.Duration
	maxAttempts int

	client      *http.Client
	clientProxy string // proxy the cached client is bound to; "" = direct
}

// NewFetcher creates a fetcher for one worker.
func NewFetcher(cfg config.CrawlConfig, pool *proxypool.Pool, pacer *Pacer, logger *slog.Logger) *Fetcher {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		pool:        pool,
		pacer:       pacer,
		logger:      logger,
		baseURL:     cfg.BaseURL,
		timeout:     timeout,
		maxAttempts: maxAttempts,
	}
}

// Fetch retrieves the page body for a term, retrying within the attempt
// budget. Retryable outcomes sleep per the pacing policy; proxy-attributable
// ones additionally mark the sticky proxy failed and rebuild the session.
func (f *Fetcher) Fetch(ctx context.Context, term string) ([]byte, error) {
	url := f.baseURL + urlTerm(term)

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		client, viaProxy := f.session(ctx)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header = f.pacer.RequestHeaders()

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("request error",
				slog.String("term", term),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			metrics.FetchRetriesTotal.WithLabelValues("network").Inc()
			// 走代理时把传输层错误记到代理头上。
			if viaProxy {
				f.pool.MarkFailed(ctx)
				f.resetSession()
			}
			if attempt < f.maxAttempts-1 {
				if err := sleepCtx(ctx, f.pacer.NetworkWait(attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch classifyStatus(resp.StatusCode) {
		case outcomeOK:
			if readErr != nil {
				f.logger.Warn("read response body failed",
					slog.String("term", term),
					slog.String("error", readErr.Error()))
				metrics.FetchRetriesTotal.WithLabelValues("network").Inc()
				if attempt < f.maxAttempts-1 {
					if err := sleepCtx(ctx, f.pacer.NetworkWait(attempt)); err != nil {
						return nil, err
					}
				}
				continue
			}
			return body, nil

		case outcomeRateLimited:
			wait := f.pacer.RateLimitWait(attempt)
			f.logger.Info("rate limited, backing off",
				slog.String("term", term),
				slog.Duration("wait", wait))
			metrics.FetchRetriesTotal.WithLabelValues("rate_limited").Inc()
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}

		case outcomeProxyError:
			f.logger.Warn("proxy error status",
				slog.Int("status", resp.StatusCode),
				slog.String("term", term))
			metrics.FetchRetriesTotal.WithLabelValues("proxy_error").Inc()
			f.pool.MarkFailed(ctx)
			if err := sleepCtx(ctx, f.pacer.ProxyErrorWait()); err != nil {
				return nil, err
			}
			f.resetSession()

		case outcomeForbidden:
			f.logger.Warn("access forbidden, possible bot detection",
				slog.String("term", term))
			metrics.FetchRetriesTotal.WithLabelValues("forbidden").Inc()
			f.pool.MarkFailed(ctx)
			if err := sleepCtx(ctx, f.pacer.ForbiddenWait()); err != nil {
				return nil, err
			}
			f.resetSession()

		default:
			f.logger.Error("unexpected http status",
				slog.Int("status", resp.StatusCode),
				slog.String("url", url))
			return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrAttemptsExhausted, term)
}

// session returns the client for the current proxy, rebuilding it only when
// the proxy changed. With no proxy available the fetch falls back to a direct
// connection.
func (f *Fetcher) session(ctx context.Context) (*http.Client, bool) {
	rec, err := f.pool.Get(ctx)
	if err != nil {
		if f.client == nil || f.clientProxy != "" {
			f.logger.Info("no proxy available, using direct connection")
			f.client = &http.Client{Timeout: f.timeout}
			f.clientProxy = ""
		}
		return f.client, false
	}

	key := rec.String()
	if f.client == nil || f.clientProxy != key {
		f.client = &http.Client{
			Timeout: f.timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(rec.URL()),
			},
		}
		f.clientProxy = key
	}
	return f.client, true
}

// resetSession drops the cached client so the next attempt builds a fresh one.
func (f *Fetcher) resetSession() {
	f.client = nil
	f.clientProxy = ""
}

// sleepCtx sleeps for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
