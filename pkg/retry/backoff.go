package retry

import (
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func ExponentialBackoff(initialInterval, maxInterval time.Duration, multiplier float64) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialInterval
	exp.MaxInterval = maxInterval
	exp.Multiplier = multiplier
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

func CalculateBackoffDuration(attempt int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	duration := float64(initialInterval) * math.Pow(multiplier, float64(attempt))
	if duration > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(duration)
}

// Pacer gates reconnection attempts without sleeping. Callers ask Ready before
// trying, report the outcome with Failed or Succeeded, and never block.
type Pacer struct {
	mu   sync.Mutex
	b    backoff.BackOff
	next time.Time
}

func NewPacer(b backoff.BackOff) *Pacer {
	return &Pacer{b: b}
}

// Ready reports whether an attempt is allowed at now.
func (p *Pacer) Ready(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !now.Before(p.next)
}

// Failed schedules the next allowed attempt and returns it.
func (p *Pacer) Failed(now time.Time) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.b.NextBackOff()
	if delay == backoff.Stop {
		delay = 0
	}
	p.next = now.Add(delay)
	return p.next
}

func (p *Pacer) Succeeded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.b.Reset()
	p.next = time.Time{}
}

func (p *Pacer) NextAttempt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}
