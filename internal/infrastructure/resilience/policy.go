package resilience

import "time"

// Backend names an outbound dependency that gets its own retry and breaker policy.
type Backend string

const (
	BackendModel  Backend = "model"
	BackendVector Backend = "vector"
	BackendBroker Backend = "broker"
)

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

// ForBackend derives one backend's policy from the shared base. Model calls
// get at most two attempts, backoff of at least 500ms and a breaker that stays
// open for at least a minute. Broker publishes get at least five short
// attempts and need more samples before the breaker trips. The vector index
// uses the base as is.
func ForBackend(base Config, backend Backend) Config {
	out := base.normalize()
	switch backend {
	case BackendModel:
		out.RetryMaxAttempts = min(out.RetryMaxAttempts, 2)
		out.RetryInitialBackoff = max(out.RetryInitialBackoff, 500*time.Millisecond)
		out.RetryMaxBackoff = max(out.RetryMaxBackoff, 2*time.Second)
		out.BreakerOpenTimeout = max(out.BreakerOpenTimeout, time.Minute)
	case BackendBroker:
		out.RetryMaxAttempts = max(out.RetryMaxAttempts, 5)
		out.RetryInitialBackoff = min(out.RetryInitialBackoff, 50*time.Millisecond)
		out.RetryMaxBackoff = min(out.RetryMaxBackoff, 250*time.Millisecond)
		out.BreakerMinRequests = max(out.BreakerMinRequests, 20)
	}
	return out.normalize()
}
