package pipeline

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newFundingBackoff builds the funding retry interval sequence: initial,
// doubling each step, no jitter (2s, 4s, 8s with the default initial).
func newFundingBackoff(initial time.Duration) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
