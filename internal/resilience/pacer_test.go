package resilience

import (
	"math/rand/v2"
	"testing"
	"time"
)

func testPacerConfig() PacerConfig {
	return PacerConfig{
		InitialDelay:     time.Second,
		MaxDelay:         3 * time.Second,
		RelaxFactor:      0.5,
		FailureThreshold: 3,
		JitterMin:        100 * time.Millisecond,
		JitterMax:        200 * time.Millisecond,
	}
}

func TestNewPacer_StartsClosedAtFloor(t *testing.T) {
	p := NewPacer(testPacerConfig())
	if p.CircuitOpen || p.ConsecutiveFailures != 0 || p.CurrentDelay != time.Second {
		t.Errorf("unexpected initial state: %+v", p)
	}
}

func TestPacer_OpensAfterThreeRateLimits(t *testing.T) {
	p := NewPacer(testPacerConfig())
	p = p.OnRateLimit()
	p = p.OnRateLimit()
	if p.CircuitOpen {
		t.Fatal("breaker opened too early")
	}
	p = p.OnRateLimit()
	if !p.CircuitOpen {
		t.Fatal("expected breaker open after 3 consecutive rate limits")
	}
	if p.ConsecutiveFailures != 3 {
		t.Errorf("expected 3 failures, got %d", p.ConsecutiveFailures)
	}
}

func TestPacer_DoublesUpToCap(t *testing.T) {
	cfg := testPacerConfig()
	cfg.FailureThreshold = 10
	p := NewPacer(cfg)

	want := []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		p = p.OnRateLimit()
		if p.CurrentDelay != w {
			t.Errorf("step %d: expected delay %v, got %v", i, w, p.CurrentDelay)
		}
		if p.CurrentDelay > cfg.MaxDelay {
			t.Errorf("step %d: delay %v exceeds cap", i, p.CurrentDelay)
		}
	}
}

func TestPacer_SuccessResetsFailuresAndRelaxes(t *testing.T) {
	p := NewPacer(testPacerConfig())
	p = p.OnRateLimit() // 2s
	p = p.OnRateLimit() // 3s (capped)
	p = p.OnSuccess()

	if p.ConsecutiveFailures != 0 {
		t.Errorf("expected failures reset, got %d", p.ConsecutiveFailures)
	}
	if p.CurrentDelay != 1500*time.Millisecond {
		t.Errorf("expected relaxed delay 1.5s, got %v", p.CurrentDelay)
	}

	p = p.OnSuccess()
	if p.CurrentDelay != time.Second {
		t.Errorf("expected delay clamped to floor, got %v", p.CurrentDelay)
	}
}

func TestPacer_StreakMustBeConsecutive(t *testing.T) {
	p := NewPacer(testPacerConfig())
	p = p.OnRateLimit().OnRateLimit().OnSuccess().OnRateLimit().OnRateLimit()
	if p.CircuitOpen {
		t.Error("success in between should have reset the streak")
	}
}

func TestPacer_ValueSemantics(t *testing.T) {
	p := NewPacer(testPacerConfig())
	_ = p.OnRateLimit()
	if p.ConsecutiveFailures != 0 {
		t.Error("transition must not mutate the receiver")
	}
}

func TestPacer_OpenIsTerminal(t *testing.T) {
	p := NewPacer(testPacerConfig())
	p = p.OnRateLimit().OnRateLimit().OnRateLimit()
	p = p.OnSuccess()
	if !p.CircuitOpen {
		t.Error("breaker must stay open for the rest of the run")
	}
}

func TestPacer_WaitIncludesJitter(t *testing.T) {
	p := NewPacer(testPacerConfig())
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		w := p.Wait(rng)
		if w < 1100*time.Millisecond || w > 1200*time.Millisecond {
			t.Fatalf("wait %v outside [1.1s, 1.2s]", w)
		}
	}
}

func TestBetween(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	if got := Between(rng, time.Second, time.Second); got != time.Second {
		t.Errorf("degenerate range: got %v", got)
	}
	if got := Between(rng, 2*time.Second, time.Second); got != 2*time.Second {
		t.Errorf("inverted range should return lo, got %v", got)
	}
	for i := 0; i < 50; i++ {
		got := Between(nil, 10*time.Millisecond, 20*time.Millisecond)
		if got < 10*time.Millisecond || got > 20*time.Millisecond {
			t.Fatalf("got %v outside range", got)
		}
	}
}

func TestNewPacer_Defaults(t *testing.T) {
	p := NewPacer(PacerConfig{})
	cfg := p.Config()
	def := DefaultPacerConfig()
	if cfg.InitialDelay != def.InitialDelay || cfg.MaxDelay != def.MaxDelay || cfg.FailureThreshold != def.FailureThreshold {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestFromPacingConfig(t *testing.T) {
	cfg := FromPacingConfig(500, 4000, 0.5, 2, 10, 20)
	if cfg.InitialDelay != 500*time.Millisecond || cfg.MaxDelay != 4*time.Second {
		t.Errorf("unexpected delays: %+v", cfg)
	}
	if cfg.FailureThreshold != 2 || cfg.RelaxFactor != 0.5 {
		t.Errorf("unexpected thresholds: %+v", cfg)
	}
	if cfg.JitterMin != 10*time.Millisecond || cfg.JitterMax != 20*time.Millisecond {
		t.Errorf("unexpected jitter: %+v", cfg)
	}
}
