package crawler

import (
	"testing"
	"time"
)

// testPacing 把所有延迟区间清零，随机决策关掉，测试里一轮循环立刻跑完。
func testPacing() PacingConfig {
	return PacingConfig{
		EmptyLongAfter: 5,
		RefererChance:  0.5,
	}
}

func TestPacer_SameSeedSameSequence(t *testing.T) {
	a := NewPacer(DefaultPacing(), 42)
	b := NewPacer(DefaultPacing(), 42)

	for i := 0; i < 50; i++ {
		if da, db := a.PreFetch(), b.PreFetch(); da != db {
			t.Fatalf("draw %d diverged: %v vs %v", i, da, db)
		}
		if da, db := a.RateLimitWait(i%3), b.RateLimitWait(i%3); da != db {
			t.Fatalf("rate limit draw %d diverged: %v vs %v", i, da, db)
		}
		if a.GiveUp() != b.GiveUp() {
			t.Fatalf("give-up decision %d diverged", i)
		}
	}
}

func TestPacer_DrawsStayInRange(t *testing.T) {
	p := NewPacer(DefaultPacing(), 7)
	cfg := DefaultPacing()

	for i := 0; i < 200; i++ {
		if d := p.PreFetch(); d < cfg.PreFetch.Min || d >= cfg.PreFetch.Max+cfg.LongPause.Max {
			t.Fatalf("PreFetch out of range: %v", d)
		}
		if d := p.ProxyErrorWait(); d < cfg.ProxyWait.Min || d >= cfg.ProxyWait.Max {
			t.Fatalf("ProxyErrorWait out of range: %v", d)
		}
		if d := p.ForbiddenWait(); d < cfg.ForbiddenWait.Min || d >= cfg.ForbiddenWait.Max {
			t.Fatalf("ForbiddenWait out of range: %v", d)
		}
	}
}

func TestPacer_RateLimitWaitGrowsWithAttempts(t *testing.T) {
	cfg := testPacing()
	cfg.RateLimitWait = DurationRange{Min: 10 * time.Second}
	cfg.RateLimitStep = DurationRange{Min: 5 * time.Second}
	p := NewPacer(cfg, 1)

	if got := p.RateLimitWait(0); got != 10*time.Second {
		t.Errorf("attempt 0: got %v", got)
	}
	if got := p.RateLimitWait(2); got != 20*time.Second {
		t.Errorf("attempt 2: got %v", got)
	}
}

func TestPacer_PostPersistDoublesOnPartialFailure(t *testing.T) {
	cfg := testPacing()
	cfg.PostPersist = DurationRange{Min: 10 * time.Millisecond}
	p := NewPacer(cfg, 1)

	if got := p.PostPersist(true); got != 10*time.Millisecond {
		t.Errorf("all saved: got %v", got)
	}
	if got := p.PostPersist(false); got != 20*time.Millisecond {
		t.Errorf("partial failure: got %v", got)
	}
}

func TestPacer_EmptyQueueBackoff(t *testing.T) {
	cfg := testPacing()
	cfg.EmptyShort = DurationRange{Min: 3 * time.Second}
	cfg.EmptyLong = DurationRange{Min: 15 * time.Second}
	p := NewPacer(cfg, 1)

	if got := p.EmptyQueueWait(1); got != 3*time.Second {
		t.Errorf("short backoff: got %v", got)
	}
	// 连续空到阈值后切换到长间隔。
	if got := p.EmptyQueueWait(5); got != 15*time.Second {
		t.Errorf("long backoff: got %v", got)
	}
}

func TestPacer_Decisions(t *testing.T) {
	cfg := testPacing()
	cfg.SkipProbability = 0
	cfg.GiveUpProbability = 1
	p := NewPacer(cfg, 1)

	for i := 0; i < 20; i++ {
		if p.SkipTerm() {
			t.Fatal("zero probability must never skip")
		}
		if !p.GiveUp() {
			t.Fatal("probability one must always give up")
		}
	}
}
