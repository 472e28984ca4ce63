package channel

import (
	"math/rand"
	"time"
)

// BackoffPolicy produces capped exponential reconnect delays with jitter.
// Jitter avoids thundering-herd reconnects when many dashboards lose the
// same gateway at once.
type BackoffPolicy struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

const DefaultJitterFraction = 0.2

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: DefaultJitterFraction,
	}
}

// Delay returns the delay before reconnect attempt number attempt (1-based).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.JitterFraction > 0 {
		jitter := 1 + p.JitterFraction*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * jitter)
	}
	return delay
}
