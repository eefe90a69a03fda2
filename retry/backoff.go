package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff returns the wait before retry attempt+1; attempt is 0-indexed.
// A [Fixed] config has MaxDelay equal to BaseDelay and always waits
// BaseDelay, which is what the repository uses between remote attempts.
// Otherwise the delay doubles per attempt up to MaxDelay, as the lookup
// client configures it.
func backoff(cfg Config, attempt int) time.Duration {
	if cfg.MaxDelay <= cfg.BaseDelay {
		return spread(cfg.MaxDelay, cfg.Jitter)
	}
	d := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	return spread(time.Duration(min(d, float64(cfg.MaxDelay))), cfg.Jitter)
}

// spread moves d by up to ±frac of itself.
func spread(d time.Duration, frac float64) time.Duration {
	if frac <= 0 || d <= 0 {
		return d
	}
	d += time.Duration(float64(d) * frac * (rand.Float64()*2 - 1))
	return max(d, 0)
}
