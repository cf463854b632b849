package recovery

import (
	"time"

	"github.com/vedfolnir/wsbridge/internal/transport"
)

// Default timing values.
const (
	DefaultInitialDelay        = 1 * time.Second
	DefaultMaxDelay            = 30 * time.Second
	DefaultMultiplier          = 2.0
	DefaultJitterFactor        = 0.2
	DefaultMaxRetries          = 10
	DefaultResetThreshold      = 5 * time.Minute
	DefaultFallbackDelay       = 2 * time.Second
	DefaultSuspensionInterval  = 30 * time.Second
	DefaultSuspensionThreshold = 60 * time.Second
	DefaultPollingModeTimeout  = 5 * time.Minute
	DefaultAttemptTimeout      = 10 * time.Second
)

// Config holds the recovery policy. It is supplied at construction and may
// be replaced wholesale at runtime via Manager.UpdateConfig.
type Config struct {
	// InitialDelay is the base delay for the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff factor.
	Multiplier float64
	// JitterFactor is the symmetric jitter fraction applied to the base
	// delay (0.2 means ±10%).
	JitterFactor float64
	// MaxRetries is the number of scheduled retries before escalation.
	MaxRetries int
	// ResetThreshold resets the retry counter when this much time has
	// passed since the last retry.
	ResetThreshold time.Duration

	// TransportFallback enables switching to FallbackTransports on
	// cors/transport failures.
	TransportFallback bool
	// FallbackTransports is the transport set used when falling back.
	FallbackTransports []transport.Name
	// FallbackDelay is the settle time between a transport switch and the
	// next connect attempt.
	FallbackDelay time.Duration

	// SuspensionDetection enables the activity-gap suspension detector.
	SuspensionDetection bool
	// SuspensionThreshold is the activity gap treated as a suspension.
	SuspensionThreshold time.Duration
	// SuspensionCheckInterval is how often the gap is checked.
	SuspensionCheckInterval time.Duration
	// PollingModeTimeout bounds how long degraded polling mode lasts.
	PollingModeTimeout time.Duration

	// ErrorDelays overrides the backoff with a flat delay per category.
	// Error-specific delays model known recovery latencies: a rate limit
	// needs a full cool-down, not a fast retry.
	ErrorDelays map[Category]time.Duration
}

// DefaultConfig returns the standard recovery policy.
func DefaultConfig() Config {
	return Config{
		InitialDelay:            DefaultInitialDelay,
		MaxDelay:                DefaultMaxDelay,
		Multiplier:              DefaultMultiplier,
		JitterFactor:            DefaultJitterFactor,
		MaxRetries:              DefaultMaxRetries,
		ResetThreshold:          DefaultResetThreshold,
		TransportFallback:       true,
		FallbackTransports:      []transport.Name{transport.NamePolling},
		FallbackDelay:           DefaultFallbackDelay,
		SuspensionDetection:     true,
		SuspensionThreshold:     DefaultSuspensionThreshold,
		SuspensionCheckInterval: DefaultSuspensionInterval,
		PollingModeTimeout:      DefaultPollingModeTimeout,
		ErrorDelays: map[Category]time.Duration{
			CategoryRateLimit: 30 * time.Second,
			CategoryTimeout:   DefaultAttemptTimeout,
		},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig so a partially
// specified config is always usable.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier <= 1 {
		c.Multiplier = def.Multiplier
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = def.JitterFactor
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.ResetThreshold <= 0 {
		c.ResetThreshold = def.ResetThreshold
	}
	if len(c.FallbackTransports) == 0 {
		c.FallbackTransports = append([]transport.Name(nil), def.FallbackTransports...)
	}
	if c.FallbackDelay <= 0 {
		c.FallbackDelay = def.FallbackDelay
	}
	if c.SuspensionThreshold <= 0 {
		c.SuspensionThreshold = def.SuspensionThreshold
	}
	if c.SuspensionCheckInterval <= 0 {
		c.SuspensionCheckInterval = def.SuspensionCheckInterval
	}
	if c.PollingModeTimeout <= 0 {
		c.PollingModeTimeout = def.PollingModeTimeout
	}
	if c.ErrorDelays == nil {
		c.ErrorDelays = make(map[Category]time.Duration)
		for k, v := range def.ErrorDelays {
			c.ErrorDelays[k] = v
		}
	}
	return c
}

// clone returns a deep copy safe to hand to callers.
func (c Config) clone() Config {
	out := c
	out.FallbackTransports = append([]transport.Name(nil), c.FallbackTransports...)
	out.ErrorDelays = make(map[Category]time.Duration, len(c.ErrorDelays))
	for k, v := range c.ErrorDelays {
		out.ErrorDelays[k] = v
	}
	return out
}

// attemptTimeout is the per-attempt connect timeout: the timeout error delay
// when configured, else 10s.
func (c Config) attemptTimeout() time.Duration {
	if d, ok := c.ErrorDelays[CategoryTimeout]; ok && d > 0 {
		return d
	}
	return DefaultAttemptTimeout
}

// Patch is a partial configuration merged into the live config at runtime.
// Nil fields keep their current value; ErrorDelays entries merge key-wise.
type Patch struct {
	InitialDelay            *time.Duration
	MaxDelay                *time.Duration
	Multiplier              *float64
	JitterFactor            *float64
	MaxRetries              *int
	ResetThreshold          *time.Duration
	TransportFallback       *bool
	FallbackTransports      []transport.Name
	FallbackDelay           *time.Duration
	SuspensionDetection     *bool
	SuspensionThreshold     *time.Duration
	SuspensionCheckInterval *time.Duration
	PollingModeTimeout      *time.Duration
	ErrorDelays             map[Category]time.Duration
}

// Apply merges the patch into a copy of the config.
func (c Config) Apply(p Patch) Config {
	out := c.clone()
	if p.InitialDelay != nil {
		out.InitialDelay = *p.InitialDelay
	}
	if p.MaxDelay != nil {
		out.MaxDelay = *p.MaxDelay
	}
	if p.Multiplier != nil {
		out.Multiplier = *p.Multiplier
	}
	if p.JitterFactor != nil {
		out.JitterFactor = *p.JitterFactor
	}
	if p.MaxRetries != nil {
		out.MaxRetries = *p.MaxRetries
	}
	if p.ResetThreshold != nil {
		out.ResetThreshold = *p.ResetThreshold
	}
	if p.TransportFallback != nil {
		out.TransportFallback = *p.TransportFallback
	}
	if p.FallbackTransports != nil {
		out.FallbackTransports = append([]transport.Name(nil), p.FallbackTransports...)
	}
	if p.FallbackDelay != nil {
		out.FallbackDelay = *p.FallbackDelay
	}
	if p.SuspensionDetection != nil {
		out.SuspensionDetection = *p.SuspensionDetection
	}
	if p.SuspensionThreshold != nil {
		out.SuspensionThreshold = *p.SuspensionThreshold
	}
	if p.SuspensionCheckInterval != nil {
		out.SuspensionCheckInterval = *p.SuspensionCheckInterval
	}
	if p.PollingModeTimeout != nil {
		out.PollingModeTimeout = *p.PollingModeTimeout
	}
	for k, v := range p.ErrorDelays {
		out.ErrorDelays[k] = v
	}
	return out
}
