// Package circuitbreaker guards the outbound verification-tool APIs. A
// flapping upstream trips its breaker and subsequent calls fail fast
// instead of burning the investigation's time budget on timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without calling the upstream while the breaker
	// is open.
	ErrOpen = errors.New("circuit breaker open")
	// ErrProbeSaturated is returned when the half-open probe allowance is
	// already in flight.
	ErrProbeSaturated = errors.New("circuit breaker probing, try later")
)

// Settings tunes one breaker.
type Settings struct {
	FailureThreshold uint32        // consecutive failures that trip the breaker
	SuccessThreshold uint32        // consecutive probe successes that close it again
	MaxProbes        uint32        // concurrent requests allowed while half-open
	OpenTimeout      time.Duration // open duration before the first probe
	CountWindow      time.Duration // closed-state counter reset interval
}

// DefaultSettings suits the verification tools: trip after five straight
// failures, probe after ten seconds.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		MaxProbes:        3,
		OpenTimeout:      10 * time.Second,
		CountWindow:      time.Minute,
	}
}

// Counts is a snapshot of request statistics for the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker is a three-state circuit breaker. A generation counter ties each
// outcome to the window it started in, so a late result from before a state
// change never corrupts the new window's counts.
type Breaker struct {
	name     string
	settings Settings
	logger   *zap.Logger

	mu         sync.RWMutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// New creates a breaker named after the upstream it guards.
func New(name string, settings Settings, logger *zap.Logger) *Breaker {
	if settings.FailureThreshold == 0 {
		settings = DefaultSettings()
	}
	return &Breaker{
		name:     name,
		settings: settings,
		logger:   logger,
		state:    StateClosed,
		expiry:   time.Now().Add(settings.CountWindow),
	}
}

// Execute runs fn when the breaker admits the request and records the
// outcome. Context errors count as failures like any other.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := b.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(generation, err == nil)
	return err
}

// State reports the last observed state. Time-based transitions apply on
// the next request, not here.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Counts reports the current generation's statistics.
func (b *Breaker) Counts() Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counts
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	switch {
	case state == StateOpen:
		return generation, ErrOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxProbes:
		return generation, ErrProbeSaturated
	}
	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) record(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)
	if generation != before {
		return
	}
	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

// currentState applies time-based transitions before reporting. Callers
// hold the write lock.
func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.newGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0
	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.SuccessThreshold {
		b.transition(StateClosed, now)
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.settings.FailureThreshold {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.transition(StateOpen, now)
	}
}

func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.newGeneration(now)
	if b.logger != nil {
		b.logger.Warn("circuit breaker state change",
			zap.String("breaker", b.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
}

func (b *Breaker) newGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}
	switch b.state {
	case StateClosed:
		if b.settings.CountWindow > 0 {
			b.expiry = now.Add(b.settings.CountWindow)
		} else {
			b.expiry = time.Time{}
		}
	case StateOpen:
		b.expiry = now.Add(b.settings.OpenTimeout)
	default:
		b.expiry = time.Time{}
	}
}
