package resolver

import (
	"sync"

	"github.com/GriffinCanCode/partloader/internal/domain/bundle"
)

// State is the download state of one bundle
type State int

const (
	NotStarted State = iota
	InFlight
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// LocalLocation is where a fetched artifact can be loaded from
type LocalLocation string

// attempt is one fetch of a bundle. Its result fields are written once,
// before done is closed, and are read-only afterwards.
type attempt struct {
	done      chan struct{}
	locations []LocalLocation
	err       error
}

// record is the download record of one bundle. It is created on first
// reference and reused for every retry.
type record struct {
	ref bundle.Ref

	mu       sync.Mutex
	state    State
	attempts int
	current  *attempt
	fatal    bool
}

// begin moves the record to InFlight and returns the new attempt, or
// returns the attempt a waiter should join. started reports whether the
// caller owns the new attempt and must run it.
func (r *record) begin() (a *attempt, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a := r.joinableLocked(); a != nil {
		return a, false
	}

	r.state = InFlight
	r.attempts++
	r.current = &attempt{done: make(chan struct{})}
	return r.current, true
}

// joinable returns the attempt a caller may wait on without starting a new
// one, or nil when the record needs a fresh attempt
func (r *record) joinable() *attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinableLocked()
}

func (r *record) joinableLocked() *attempt {
	switch r.state {
	case InFlight, Done:
		return r.current
	case Failed:
		if r.fatal {
			return r.current
		}
	}
	return nil
}

// settle publishes the attempt result and wakes every waiter
func (r *record) settle(a *attempt, locations []LocalLocation, err error, fatal bool) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.locations = locations
	a.err = err
	if err != nil {
		r.state = Failed
		r.fatal = fatal
	} else {
		r.state = Done
	}
	close(a.done)
	return r.state
}

func (r *record) status() (State, int, *attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.attempts, r.current
}
