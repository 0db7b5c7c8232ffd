package llm

import (
	"fmt"
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// outcome is how one service contact affects the breaker.
type outcome int

const (
	outcomeSuccess outcome = iota
	// outcomeFailure is a Throttled or Unavailable contact.
	outcomeFailure
	// outcomeNeutral neither counts nor resets: invocation errors and
	// contacts abandoned because the caller gave up.
	outcomeNeutral
)

// Breaker counts consecutive degraded-service failures across calls. After
// threshold failures it opens and rejects calls until cooldown elapses, then
// lets a single trial call through.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state    breakerState
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker constructs a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: now}
}

// Allow reports whether a call may contact the service. While open it
// returns the time remaining until the trial call.
func (b *Breaker) Allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		elapsed := b.now().Sub(b.openedAt)
		if elapsed < b.cooldown {
			return false, b.cooldown - elapsed
		}
		b.state = stateHalfOpen
		b.trial = true
		return true, 0
	case stateHalfOpen:
		if b.trial {
			return false, 0
		}
		b.trial = true
		return true, 0
	default:
		return true, 0
	}
}

// Record applies the outcome of a contact admitted by Allow and returns the
// resulting state.
func (b *Breaker) Record(o outcome) breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasTrial := b.state == stateHalfOpen
	b.trial = false
	switch o {
	case outcomeSuccess:
		b.state = stateClosed
		b.failures = 0
	case outcomeFailure:
		b.failures++
		if wasTrial || b.failures >= b.threshold {
			b.state = stateOpen
			b.openedAt = b.now()
		}
	}
	return b.state
}

// State returns the current state and consecutive failure count.
func (b *Breaker) State() (string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String(), b.failures
}

func (b *Breaker) String() string {
	state, failures := b.State()
	return fmt.Sprintf("breaker state=%s failures=%d", state, failures)
}
