// Package circuitbreaker provides a latching failure budget for outbound
// work that should stop for the rest of a run once a remote keeps failing.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOpenState is returned by Allow once the budget is spent.
var ErrOpenState = errors.New("circuit breaker is open")

// State of a breaker. There is no half-open state: an open breaker stays
// open until Reset.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config holds breaker settings
type Config struct {
	// MaxFailures opens the breaker when reached. Zero means the first
	// failure opens it.
	MaxFailures uint

	// IsSuccessful classifies a recorded error. Defaults to err == nil.
	IsSuccessful func(error) bool

	// OnStateChange runs after a transition, outside the lock.
	OnStateChange func(from, to State)
}

// BudgetConfig returns a config allowing maxFailures failures in total
func BudgetConfig(maxFailures uint) Config {
	return Config{MaxFailures: maxFailures}
}

// CircuitBreaker counts failures across the whole run. Successes never
// refund the budget.
type CircuitBreaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  uint
	successes uint
	rejected  uint
}

func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 1
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return err == nil }
	}
	return &CircuitBreaker{cfg: cfg}
}

// Allow returns ErrOpenState when the budget is spent. Callers that get nil
// report the outcome through Record.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		cb.rejected++
		return ErrOpenState
	}
	return nil
}

// Record counts the outcome of an allowed call
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	if cb.cfg.IsSuccessful(err) {
		cb.successes++
		cb.mu.Unlock()
		return
	}

	cb.failures++
	tripped := cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures
	if tripped {
		cb.state = StateOpen
	}
	cb.mu.Unlock()

	if tripped {
		cb.notify(StateClosed, StateOpen)
	}
}

// Execute wraps fn with Allow and Record
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Failures() uint {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Successes returns the number of calls recorded as successful
func (cb *CircuitBreaker) Successes() uint {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.successes
}

// Rejected returns how many calls Allow refused
func (cb *CircuitBreaker) Rejected() uint {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.rejected
}

// Reset closes the breaker and clears every counter
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failures, cb.successes, cb.rejected = 0, 0, 0
	cb.mu.Unlock()

	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
