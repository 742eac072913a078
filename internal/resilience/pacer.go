package resilience

import (
	"math/rand/v2"
	"time"
)

// PacerConfig controls inter-request pacing against a rate-sensitive provider.
type PacerConfig struct {
	// InitialDelay is the delay floor a run starts at and relaxes back toward.
	// Default: 8s.
	InitialDelay time.Duration

	// MaxDelay caps the delay after repeated doubling. Default: 2m.
	MaxDelay time.Duration

	// RelaxFactor scales the delay down after a success (0 < f < 1).
	// Default: 0.75.
	RelaxFactor float64

	// FailureThreshold is the number of consecutive rate-limit signals that
	// opens the breaker for the rest of the run. Default: 3.
	FailureThreshold int

	// JitterMin and JitterMax bound the random jitter added on top of the
	// current delay. Default: 2s-6s.
	JitterMin time.Duration
	JitterMax time.Duration
}

// DefaultPacerConfig returns the pacing used for the vehicle provider.
func DefaultPacerConfig() PacerConfig {
	return PacerConfig{
		InitialDelay:     8 * time.Second,
		MaxDelay:         2 * time.Minute,
		RelaxFactor:      0.75,
		FailureThreshold: 3,
		JitterMin:        2 * time.Second,
		JitterMax:        6 * time.Second,
	}
}

func (cfg PacerConfig) withDefaults() PacerConfig {
	def := DefaultPacerConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.InitialDelay > cfg.MaxDelay {
		cfg.InitialDelay = cfg.MaxDelay
	}
	if cfg.RelaxFactor <= 0 || cfg.RelaxFactor >= 1 {
		cfg.RelaxFactor = def.RelaxFactor
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.JitterMin < 0 {
		cfg.JitterMin = 0
	}
	if cfg.JitterMax < cfg.JitterMin {
		cfg.JitterMax = cfg.JitterMin
	}
	return cfg
}

// Pacer is the run-scoped backoff and circuit-breaker state. It is a value:
// every transition returns the next state and leaves the receiver untouched,
// so a batch loop threads it through iterations.
type Pacer struct {
	ConsecutiveFailures int
	CurrentDelay        time.Duration
	CircuitOpen         bool

	cfg PacerConfig
}

// NewPacer returns the state at the start of a run: closed breaker, no
// failures, delay at its floor.
func NewPacer(cfg PacerConfig) Pacer {
	cfg = cfg.withDefaults()
	return Pacer{
		CurrentDelay: cfg.InitialDelay,
		cfg:          cfg,
	}
}

// Config returns the effective configuration.
func (p Pacer) Config() PacerConfig {
	return p.cfg
}

// OnRateLimit records a rate-limit or block signal. Reaching the failure
// threshold opens the breaker; otherwise the delay doubles up to the cap.
func (p Pacer) OnRateLimit() Pacer {
	if p.CircuitOpen {
		return p
	}
	p.ConsecutiveFailures++
	if p.ConsecutiveFailures >= p.cfg.FailureThreshold {
		p.CircuitOpen = true
		return p
	}
	p.CurrentDelay = min(p.CurrentDelay*2, p.cfg.MaxDelay)
	return p
}

// OnSuccess clears the failure streak and relaxes the delay toward its floor.
func (p Pacer) OnSuccess() Pacer {
	if p.CircuitOpen {
		return p
	}
	p.ConsecutiveFailures = 0
	relaxed := time.Duration(float64(p.CurrentDelay) * p.cfg.RelaxFactor)
	p.CurrentDelay = max(relaxed, p.cfg.InitialDelay)
	return p
}

// Wait returns the pause before the next item: the current delay plus
// jitter drawn from [JitterMin, JitterMax].
func (p Pacer) Wait(rng *rand.Rand) time.Duration {
	return p.CurrentDelay + Between(rng, p.cfg.JitterMin, p.cfg.JitterMax)
}

// Between returns a uniformly random duration in [lo, hi].
func Between(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	span := int64(hi - lo)
	if rng == nil {
		return lo + time.Duration(rand.Int64N(span+1))
	}
	return lo + time.Duration(rng.Int64N(span+1))
}
