// Package circuit provides a small consecutive-failure circuit breaker used
// to shed load from flaky upstreams such as the mail provider.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker opens after FailureThreshold consecutive failures. While open,
// Allow rejects calls until the cooldown elapses; it then admits trial
// calls (half-open) and closes again after SuccessThreshold consecutive
// successes. A failure while half-open re-opens immediately.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long the breaker stays open before trial calls. Default 30s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

// State reports the current position, moving open to half-open once the cooldown has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	return b.State() != StateOpen
}

// RecordFailure counts a failed call and reports whether it opened the breaker.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	b.successes = 0
	switch b.state {
	case StateHalfOpen:
		b.trip()
		return true
	case StateOpen:
		return false
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.trip()
		return true
	}
	return false
}

// RecordSuccess counts a successful call and reports whether it closed the breaker.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures, b.successes = 0, 0
			return true
		}
		return false
	}
	b.failures = 0
	return false
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures, b.successes = 0, 0
}

func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
}
