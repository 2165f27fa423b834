package proxypool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/macabanto/wordnet/internal/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyActive is the Redis list of proxies available for rotation.
	KeyActive = "proxy_queue"
	// KeyQuarantine is the Redis list of proxies withdrawn after repeated
	// failures. Quarantined proxies are recycled in bulk when the active
	// pool runs dry; bans are assumed to be mostly transient.
	KeyQuarantine = "proxy_failed"

	// DefaultFailureThreshold is how many consecutive failures a sticky
	// proxy survives before being quarantined.
	DefaultFailureThreshold = 3
)

// ErrNoProxy means both pools are empty (or Redis was unreachable); the
// caller should fall back to a direct connection.
var ErrNoProxy = errors.New("no proxy available")

// Record is one egress endpoint, bootstrap format host:port:username:password.
type Record struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ParseRecord parses a bootstrap line into a Record.
func ParseRecord(line string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) < 4 {
		return Record{}, fmt.Errorf("invalid proxy format: %q", line)
	}
	return Record{
		Host:     parts[0],
		Port:     parts[1],
		Username: parts[2],
		Password: parts[3],
	}, nil
}

// URL returns the proxy as an http URL with embedded credentials.
func (r Record) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		User:   url.UserPassword(r.Username, r.Password),
		Host:   r.Host + ":" + r.Port,
	}
}

// String round-trips the record to its bootstrap line format.
func (r Record) String() string {
	return strings.Join([]string{r.Host, r.Port, r.Username, r.Password}, ":")
}

// Redacted returns a log-safe form of the record.
func (r Record) Redacted() string {
	return r.Host + ":***"
}

// Pool manages proxy selection and health for one worker.
//
// The two Redis lists are shared by every worker; the sticky proxy and its
// failure counter are per-worker state, which is why each worker owns its own
// Pool. A Pool is not safe for concurrent use.
type Pool struct {
	rdb       *redis.Client
	logger    *slog.Logger
	threshold int

	sticky   *Record
	failures int
}

// New creates a proxy pool manager for one worker. A non-positive threshold
// falls back to DefaultFailureThreshold.
func New(rdb *redis.Client, logger *slog.Logger, threshold int) *Pool {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Pool{rdb: rdb, logger: logger, threshold: threshold}
}

// Get returns the proxy the worker should use for the next request.
//
// If the sticky proxy is still healthy it is returned unchanged (session
// affinity; amortizes client setup). Otherwise one is popped from the active
// pool. An empty active pool triggers a bulk recycle of the quarantine pool
// before one retry; if that also comes up empty, ErrNoProxy is returned and
// the caller uses a direct connection.
func (p *Pool) Get(ctx context.Context) (*Record, error) {
	if p.sticky != nil && p.failures < p.threshold {
		return p.sticky, nil
	}

	raw, err := p.rdb.LPop(ctx, KeyActive).Result()
	if errors.Is(err, redis.Nil) {
		recycled, recErr := p.recycle(ctx)
		if recErr != nil {
			p.logger.Error("recycle quarantined proxies failed", slog.String("error", recErr.Error()))
		}
		if recycled > 0 {
			p.logger.Info("no fresh proxies, recycled quarantine pool", slog.Int("recycled", recycled))
			raw, err = p.rdb.LPop(ctx, KeyActive).Result()
		}
		if errors.Is(err, redis.Nil) || recycled == 0 {
			p.sticky = nil
			p.failures = 0
			return nil, ErrNoProxy
		}
	}
	if err != nil {
		p.logger.Error("get proxy from redis failed", slog.String("error", err.Error()))
		return nil, ErrNoProxy
	}

	rec, err := ParseRecord(raw)
	if err != nil {
		// 坏行直接丢弃，换下一个。
		p.logger.Warn("dropping malformed proxy entry", slog.String("entry", raw))
		return p.Get(ctx)
	}

	p.sticky = &rec
	p.failures = 0
	metrics.ProxyRotationsTotal.Inc()
	p.logger.Info("switched to new proxy", slog.String("proxy", rec.Redacted()))
	return p.sticky, nil
}

// MarkFailed records one failure against the sticky proxy. On the threshold'th
// consecutive failure the proxy moves to the quarantine pool, the sticky slot
// is cleared, and the counter resets for the next assignment.
//
// It returns true when the proxy was quarantined, so the caller can also drop
// any cached client session bound to it.
func (p *Pool) MarkFailed(ctx context.Context) bool {
	if p.sticky == nil {
		return false
	}

	p.failures++
	if p.failures < p.threshold {
		return false
	}

	if err := p.rdb.RPush(ctx, KeyQuarantine, p.sticky.String()).Err(); err != nil {
		p.logger.Error("quarantine proxy failed", slog.String("error", err.Error()))
	}
	p.logger.Warn("proxy quarantined after repeated failures",
		slog.String("proxy", p.sticky.Redacted()),
		slog.Int("failures", p.failures))
	metrics.ProxyQuarantinedTotal.Inc()

	p.sticky = nil
	p.failures = 0
	return true
}

// Stats returns (active, quarantined) pool sizes for observability.
// It never fails: transient backend errors report zero/zero.
func (p *Pool) Stats(ctx context.Context) (int64, int64) {
	active, err := p.rdb.LLen(ctx, KeyActive).Result()
	if err != nil {
		return 0, 0
	}
	quarantined, err := p.rdb.LLen(ctx, KeyQuarantine).Result()
	if err != nil {
		return 0, 0
	}
	metrics.ProxyPoolSize.WithLabelValues("active").Set(float64(active))
	metrics.ProxyPoolSize.WithLabelValues("quarantined").Set(float64(quarantined))
	return active, quarantined
}

// recycle drains the entire quarantine pool back into the active pool,
// one atomic pop/push pair at a time.
func (p *Pool) recycle(ctx context.Context) (int, error) {
	moved := 0
	for {
		raw, err := p.rdb.LPop(ctx, KeyQuarantine).Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("lpop quarantine: %w", err)
		}
		if err := p.rdb.RPush(ctx, KeyActive, raw).Err(); err != nil {
			return moved, fmt.Errorf("rpush active: %w", err)
		}
		moved++
		metrics.ProxyRecycledTotal.Inc()
	}
}
