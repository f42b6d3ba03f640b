package ocr

import (
	"math/rand/v2"
	"time"
)

// backoff yields exponentially growing delays with equal jitter: the n-th
// delay is drawn from [d/2, d] where d = base*2^n, capped at max. A delay is
// never shorter than the one before it. Values are owned by a single Submit
// call and are not safe for concurrent use.
type backoff struct {
	base time.Duration
	max  time.Duration
	n    int
	prev time.Duration
	rand func(n int64) int64
}

func newBackoff(base, max time.Duration) *backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, rand: rand.Int64N}
}

// Next returns the delay before the next attempt.
func (b *backoff) Next() time.Duration {
	d := b.max
	if b.n < 32 {
		if exp := b.base << b.n; exp > 0 && exp < b.max {
			d = exp
		}
	}
	b.n++

	half := d / 2
	delay := half
	if half > 0 {
		delay += time.Duration(b.rand(int64(half) + 1))
	}
	if delay < b.prev {
		delay = b.prev
	}
	b.prev = delay
	return delay
}
