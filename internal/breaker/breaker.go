// Package breaker provides a per-market circuit breaker set plus one
// global "validation" breaker for errors not attributable to a market,
// wrapping sony/gobreaker's closed/open/half-open engine behind the
// explicit RecordSuccess/RecordFailure/Allow call shape the ingest loop
// uses.
package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

const validationBreakerName = "validation"

type entry struct {
	cb *gobreaker.CircuitBreaker[struct{}]

	mu            sync.Mutex
	totalFailures uint64
	totalSuccess  uint64
	lastFailure   time.Time
	lastReason    string
}

// Set owns one breaker per market plus the global validation breaker, in a
// map guarded by a readers-writer lock.
type Set struct {
	cfg Config

	mu         sync.RWMutex
	markets    map[uint32]*entry
	validation *entry
}

func NewSet(cfg Config) *Set {
	s := &Set{cfg: cfg, markets: make(map[uint32]*entry)}
	s.validation = s.newEntry(validationBreakerName)
	return s
}

func (s *Set) newEntry(name string) *entry {
	e := &entry{}
	e.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.cfg.SuccessThreshold,
		Interval:    s.cfg.ErrorWindow,
		Timeout:     s.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.cfg.FailureThreshold
		},
	})
	return e
}

func (s *Set) entryFor(marketID uint32) *entry {
	s.mu.RLock()
	e, ok := s.markets[marketID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.markets[marketID]; ok {
		return e
	}
	e = s.newEntry(fmt.Sprintf("market-%d", marketID))
	s.markets[marketID] = e
	return e
}

// RecordSuccess feeds a success signal into the market's breaker.
func (s *Set) RecordSuccess(marketID uint32) {
	recordSuccess(s.entryFor(marketID))
}

// RecordFailure feeds a failure signal into the market's breaker.
func (s *Set) RecordFailure(marketID uint32, reason string) {
	recordFailure(s.entryFor(marketID), reason)
}

// RecordValidationSuccess feeds a success into the global validation breaker.
func (s *Set) RecordValidationSuccess() {
	recordSuccess(s.validation)
}

// RecordValidationFailure feeds a failure into the global validation breaker.
func (s *Set) RecordValidationFailure(reason string) {
	recordFailure(s.validation, reason)
}

func recordSuccess(e *entry) {
	// Execute drives gobreaker's internal state machine; the wrapped
	// call does no real work, it only reports outcome.
	e.cb.Execute(func() (struct{}, error) { return struct{}{}, nil })
	e.mu.Lock()
	e.totalSuccess++
	e.mu.Unlock()
}

func recordFailure(e *entry, reason string) {
	e.cb.Execute(func() (struct{}, error) { return struct{}{}, errors.New(reason) })
	e.mu.Lock()
	e.totalFailures++
	e.lastFailure = time.Now()
	e.lastReason = reason
	e.mu.Unlock()
}

// Allow reports whether the market's breaker currently permits requests
// (i.e. is not Open).
func (s *Set) Allow(marketID uint32) bool {
	return s.entryFor(marketID).cb.State() != gobreaker.StateOpen
}

// ValidationOpen reports whether the global validation breaker is Open.
func (s *Set) ValidationOpen() bool {
	return s.validation.cb.State() == gobreaker.StateOpen
}

// State returns the introspectable CircuitState for a market's breaker.
func (s *Set) State(marketID uint32) CircuitState {
	return stateOf(s.entryFor(marketID))
}

// ValidationState returns the introspectable CircuitState for the global
// validation breaker.
func (s *Set) ValidationState() CircuitState {
	return stateOf(s.validation)
}

func stateOf(e *entry) CircuitState {
	e.mu.Lock()
	cs := CircuitState{
		TotalFailures: e.totalFailures,
		TotalSuccesses: e.totalSuccess,
		LastFailure:   e.lastFailure,
		Reason:        e.lastReason,
	}
	e.mu.Unlock()

	counts := e.cb.Counts()
	switch e.cb.State() {
	case gobreaker.StateOpen:
		cs.Kind = Open
	case gobreaker.StateHalfOpen:
		cs.Kind = HalfOpen
		cs.ConsecutiveSuccesses = counts.ConsecutiveSuccesses
	default:
		cs.Kind = Closed
		cs.ConsecutiveFailures = counts.ConsecutiveFailures
	}
	return cs
}
