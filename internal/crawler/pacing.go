package crawler

import (
	"math/rand"
	"time"
)

// DurationRange is a closed interval a delay is drawn from.
type DurationRange struct {
	Min time.Duration
	Max time.Duration
}

// PacingConfig 集中了所有随机化的"拟人"节奏参数。这些只是策略旋钮，
// 不影响正确性；测试里把区间设为零并固定种子即可得到确定性行为。
type PacingConfig struct {
	PreFetch        DurationRange // 每次请求前的基础停顿
	LongPause       DurationRange // 偶发的额外长停顿
	LongPauseChance float64       // 触发长停顿的概率

	RateLimitWait DurationRange // 429 后的基础等待
	RateLimitStep DurationRange // 429 每多一次尝试追加的等待
	ProxyWait     DurationRange // 代理错误 (407/502/503/504) 后的等待
	ForbiddenWait DurationRange // 403 后的等待（更长，更换会话）
	NetworkWait   DurationRange // 传输层错误后的基础等待
	NetworkStep   DurationRange // 传输层错误每多一次尝试追加的等待

	PostPersist DurationRange // 持久化成功后的小停顿
	EmptyShort  DurationRange // 队列空时的短轮询间隔
	EmptyLong   DurationRange // 连续多次空之后的长轮询间隔
	Recovery    DurationRange // 未分类异常后的恢复间隔

	EmptyLongAfter    int     // 连续空多少次后切换到长间隔
	SkipProbability   float64 // 随机跳过词条的概率
	GiveUpProbability float64 // 抓取失败后放弃（不重新入队）的概率
	RefererChance     float64 // 请求携带 Referer 的概率
}

// DefaultPacing returns the production pacing profile.
func DefaultPacing() PacingConfig {
	return PacingConfig{
		PreFetch:        DurationRange{1500 * time.Millisecond, 4 * time.Second},
		LongPause:       DurationRange{2 * time.Second, 8 * time.Second},
		LongPauseChance: 0.15,

		RateLimitWait: DurationRange{10 * time.Second, 30 * time.Second},
		RateLimitStep: DurationRange{5 * time.Second, 15 * time.Second},
		ProxyWait:     DurationRange{5 * time.Second, 15 * time.Second},
		ForbiddenWait: DurationRange{20 * time.Second, 60 * time.Second},
		NetworkWait:   DurationRange{3 * time.Second, 10 * time.Second},
		NetworkStep:   DurationRange{2 * time.Second, 6 * time.Second},

		PostPersist: DurationRange{500 * time.Millisecond, 2 * time.Second},
		EmptyShort:  DurationRange{3 * time.Second, 8 * time.Second},
		EmptyLong:   DurationRange{15 * time.Second, 30 * time.Second},
		Recovery:    DurationRange{8 * time.Second, 15 * time.Second},

		EmptyLongAfter:    5,
		SkipProbability:   0.03,
		GiveUpProbability: 0.7,
		RefererChance:     0.7,
	}
}

// Pacer draws all randomized delays and policy decisions from a single
// seedable source, so a worker's behavior is reproducible in tests.
// A Pacer belongs to exactly one worker and is not safe for concurrent use.
type Pacer struct {
	cfg PacingConfig
	rng *rand.Rand
}

// NewPacer creates a pacer from the given profile. A zero seed picks a
// time-based one.
func NewPacer(cfg PacingConfig, seed int64) *Pacer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Pacer{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

func (p *Pacer) between(r DurationRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(p.rng.Int63n(int64(r.Max-r.Min)))
}

func (p *Pacer) chance(probability float64) bool {
	return p.rng.Float64() < probability
}

// PreFetch returns the pause taken before each request, occasionally
// stretched by a longer "reading" break.
func (p *Pacer) PreFetch() time.Duration {
	d := p.between(p.cfg.PreFetch)
	if p.chance(p.cfg.LongPauseChance) {
		d += p.between(p.cfg.LongPause)
	}
	return d
}

// RateLimitWait grows with the attempt count; the proxy is kept.
func (p *Pacer) RateLimitWait(attempt int) time.Duration {
	return p.between(p.cfg.RateLimitWait) + time.Duration(attempt)*p.between(p.cfg.RateLimitStep)
}

// ProxyErrorWait is the pause before retrying with a different proxy.
func (p *Pacer) ProxyErrorWait() time.Duration {
	return p.between(p.cfg.ProxyWait)
}

// ForbiddenWait is the longer pause after a 403, before a fresh session.
func (p *Pacer) ForbiddenWait() time.Duration {
	return p.between(p.cfg.ForbiddenWait)
}

// NetworkWait grows with the attempt count.
func (p *Pacer) NetworkWait(attempt int) time.Duration {
	return p.between(p.cfg.NetworkWait) + time.Duration(attempt)*p.between(p.cfg.NetworkStep)
}

// PostPersist is the pause after persisting a term's entries, doubled when
// some of them failed to store.
func (p *Pacer) PostPersist(allSaved bool) time.Duration {
	d := p.between(p.cfg.PostPersist)
	if !allSaved {
		d *= 2
	}
	return d
}

// EmptyQueueWait backs off polling an empty frontier: short for the first few
// misses, longer and randomized afterward.
func (p *Pacer) EmptyQueueWait(consecutive int) time.Duration {
	if consecutive >= p.cfg.EmptyLongAfter {
		return p.between(p.cfg.EmptyLong)
	}
	return p.between(p.cfg.EmptyShort)
}

// RecoveryWait is the sleep after an unclassified error in the main loop.
func (p *Pacer) RecoveryWait() time.Duration {
	return p.between(p.cfg.Recovery)
}

// SkipTerm decides whether to drop a popped term outright (organic pacing).
func (p *Pacer) SkipTerm() bool {
	return p.chance(p.cfg.SkipProbability)
}

// GiveUp decides whether a term that failed fetching is abandoned (true)
// or re-pushed onto the frontier for a later attempt (false).
func (p *Pacer) GiveUp() bool {
	return p.chance(p.cfg.GiveUpProbability)
}
