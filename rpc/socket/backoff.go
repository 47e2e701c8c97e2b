package socket

import (
	"github.com/cenkalti/backoff/v4"
	"math"
	"time"
)

// retryMultiplier is the growth factor between two reconnection attempts
const retryMultiplier = 1.5

var _ backoff.BackOff = (*retryBackOff)(nil)

// retryBackOff is the reconnection delay sequence: base, then the previous
// delay times 1.5 capped at max and rounded to the millisecond. The rounded
// value is what grows, so 100ms gives 100, 150, 225, 338, 507, 761, ...
// There is no jitter and no overall deadline.
type retryBackOff struct {
	base, max time.Duration
	next      time.Duration
}

func newRetryBackOff(base, maxDelay time.Duration) *retryBackOff {
	return &retryBackOff{base: base, max: maxDelay, next: base}
}

// NextBackOff returns the current delay and advances the sequence
func (b *retryBackOff) NextBackOff() time.Duration {
	delay := b.next
	grown := math.Min(float64(b.max), float64(delay)*retryMultiplier)
	b.next = time.Duration(math.Round(grown/float64(time.Millisecond))) * time.Millisecond
	return delay
}

// Reset starts the sequence over at the base delay
func (b *retryBackOff) Reset() {
	b.next = b.base
}

// nextRetryDelay returns the next delay of b
func nextRetryDelay(b backoff.BackOff) time.Duration {
	return b.NextBackOff()
}
