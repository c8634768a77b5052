package client

import (
	"math/rand"
	"time"
)

// CalculateBackoff calculates exponential backoff with jitter. Callers that
// choose to retry (the gateway never does) share this policy so concurrent
// runs do not retry in lockstep.
func CalculateBackoff(baseDelay time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	delay := baseDelay * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}

	// Jitter: random value between 0 and 25% of delay
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}
