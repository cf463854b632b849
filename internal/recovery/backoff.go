package recovery

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MinDelay is the floor applied to every computed delay. It prevents
// pathological zero or near-zero retries when jitter lands low or a
// misconfigured override is tiny.
const MinDelay = 1 * time.Second

// Backoff computes retry delays. The random source is injectable so delay
// computation is reproducible under a fixed seed.
type Backoff struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a Backoff. A nil rng gets a time-seeded source.
func NewBackoff(rng *rand.Rand) *Backoff {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Backoff{rng: rng}
}

// Delay returns the jittered delay before retry number retryCount for the
// given failure category.
func (b *Backoff) Delay(cfg Config, category Category, retryCount int) time.Duration {
	base := float64(baseDelay(cfg, category, retryCount))

	b.mu.Lock()
	r := b.rng.Float64()
	b.mu.Unlock()

	// Symmetric jitter around the base delay.
	jitter := base * cfg.JitterFactor * (r - 0.5)

	d := time.Duration(base + jitter)
	if d < MinDelay {
		d = MinDelay
	}
	return d
}

// baseDelay is the delay before jitter. Categories with a configured
// override use it flat; everything else gets capped exponential backoff.
func baseDelay(cfg Config, category Category, retryCount int) time.Duration {
	if d, ok := cfg.ErrorDelays[category]; ok && d > 0 {
		return d
	}

	if retryCount < 0 {
		retryCount = 0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(retryCount))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
