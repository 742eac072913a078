package resilience

import "time"

// FromPacingConfig converts millisecond config values to a PacerConfig.
// Zero or negative values keep the defaults.
func FromPacingConfig(initialDelayMs, maxDelayMs int, relaxFactor float64, failureThreshold, jitterMinMs, jitterMaxMs int) PacerConfig {
	cfg := DefaultPacerConfig()
	if initialDelayMs > 0 {
		cfg.InitialDelay = time.Duration(initialDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	if relaxFactor > 0 && relaxFactor < 1 {
		cfg.RelaxFactor = relaxFactor
	}
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if jitterMinMs >= 0 {
		cfg.JitterMin = time.Duration(jitterMinMs) * time.Millisecond
	}
	if jitterMaxMs >= 0 {
		cfg.JitterMax = time.Duration(jitterMaxMs) * time.Millisecond
	}
	return cfg.withDefaults()
}
