package execution

import "time"

const (
	// DefaultInitialDelay 默认首次轮询间隔
	DefaultInitialDelay = time.Second
	// DefaultMaxDelay 默认最大轮询间隔
	DefaultMaxDelay = 30 * time.Second
	// DefaultMultiplier 默认退避倍数
	DefaultMultiplier = 2.0
)

// Backoff yields the exponential delay sequence used between polls:
// initial, initial*m, initial*m^2, ... capped at max. There is no jitter
// and no attempt limit. A Backoff is not safe for concurrent use.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	current    time.Duration
}

// NewBackoff creates a Backoff. Non-positive arguments fall back to the
// defaults; a multiplier below 1 is treated as 1.
func NewBackoff(initial, max time.Duration, multiplier float64) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{initial: initial, max: max, multiplier: multiplier}
}

// DefaultBackoff returns the 1s, x2, 30s backoff.
func DefaultBackoff() *Backoff {
	return NewBackoff(DefaultInitialDelay, DefaultMaxDelay, DefaultMultiplier)
}

// Next returns the delay to wait now and advances the sequence.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = min(b.initial, b.max)
	}
	d := b.current

	// 应用最大延迟限制，同时防止溢出
	next := float64(b.current) * b.multiplier
	if next >= float64(b.max) {
		b.current = b.max
	} else {
		b.current = time.Duration(next)
	}
	return d
}

// Reset restarts the sequence at the initial delay.
func (b *Backoff) Reset() {
	b.current = 0
}
