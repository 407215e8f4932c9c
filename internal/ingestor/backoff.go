package ingestor

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays. Transient failures grow exponentially
// to a ceiling; credential failures wait a fixed, much longer interval since
// fast retries cannot fix a bad password.
type Backoff struct {
	Base         time.Duration
	Factor       float64
	Max          time.Duration
	Jitter       float64
	AuthInterval time.Duration
}

// DefaultBackoff is 1s doubling to a 60s ceiling, with credential retries
// every 5 minutes.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:         time.Second,
		Factor:       2,
		Max:          60 * time.Second,
		Jitter:       0.2,
		AuthInterval: 5 * time.Minute,
	}
}

// Next returns the delay before reconnect attempt n (1-based). The pre-jitter
// delay is non-decreasing in n and never exceeds Max; jitter only adds.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt-1))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += rand.Float64() * b.Jitter * d
	}
	return time.Duration(d)
}
