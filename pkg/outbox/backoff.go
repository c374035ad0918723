package outbox

import "time"

const (
	DefaultBaseDelay   = 15 * time.Second
	DefaultMaxDelay    = 30 * time.Minute
	DefaultMaxAttempts = 8
	DefaultBatchSize   = 10
)

// RetryPolicy controls when a failed mutation is retried or abandoned.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns min(base * 2^clamp(attempts, 1, maxAttempts), max). No jitter.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	p = p.withDefaults()
	exp := attempts
	if exp < 1 {
		exp = 1
	}
	if exp > p.MaxAttempts {
		exp = p.MaxAttempts
	}
	delay := p.BaseDelay
	for i := 0; i < exp; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// Exhausted reports whether a row with this many attempts is abandoned.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.withDefaults().MaxAttempts
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// Backoff is Delay under the default policy.
func Backoff(attempts int) time.Duration {
	return DefaultRetryPolicy().Delay(attempts)
}
