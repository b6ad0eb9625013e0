package supervisor

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Policy decides what happens when a slot's service returns.
type Policy int

const (
	// PolicyRestartForever reconstructs and reruns the service after every
	// crash or completion. Nothing is escalated.
	PolicyRestartForever Policy = iota
	// PolicyRestartUntilReport reruns the service after a completion, but
	// reports the first crash and terminates the slot, ending Wait.
	PolicyRestartUntilReport
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyRestartForever:
		return "restart_forever"
	case PolicyRestartUntilReport:
		return "restart_until_report"
	default:
		return "unknown"
	}
}

// State is a slot's position in its run loop.
type State int

const (
	StateConstructing State = iota
	StateRunning
	StateCrashed
	StateCompleted
	StateReported
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	case StateCompleted:
		return "completed"
	case StateReported:
		return "reported"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PanicError is the crash recorded when a constructor or Run panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("service panicked: %v", e.Value)
}

// safely runs fn, turning a panic into a *PanicError.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Slot is one supervised unit of work and its restart policy. It lives
// until its run loop terminates.
type Slot struct {
	name   string
	id     string
	policy Policy
	done   chan struct{}

	mu            sync.RWMutex
	state         State
	description   string
	constructions int
	crashes       int
	completions   int
	consecutive   int
	lastErr       error
	startedAt     time.Time
	changedAt     time.Time
	escalated     bool
}

func newSlot(name string, policy Policy) *Slot {
	now := time.Now()
	return &Slot{
		name:      name,
		id:        uuid.NewString(),
		policy:    policy,
		done:      make(chan struct{}),
		state:     StateConstructing,
		startedAt: now,
		changedAt: now,
	}
}

// Name returns the name given at spawn time.
func (s *Slot) Name() string { return s.name }

// ID returns the slot's unique id.
func (s *Slot) ID() string { return s.id }

// Policy returns the slot's restart policy.
func (s *Slot) Policy() Policy { return s.policy }

// Done is closed once the slot's loop has terminated.
func (s *Slot) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Slot) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Constructions returns how many times the service has been constructed.
func (s *Slot) Constructions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constructions
}

// Crashes returns the total crash count.
func (s *Slot) Crashes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crashes
}

// LastError returns the most recent crash, if any.
func (s *Slot) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Slot) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.changedAt = time.Now()
	s.mu.Unlock()
}

func (s *Slot) constructing() {
	s.mu.Lock()
	s.state = StateConstructing
	s.constructions++
	s.changedAt = time.Now()
	s.mu.Unlock()
}

func (s *Slot) running(description string) {
	s.mu.Lock()
	s.state = StateRunning
	s.description = description
	s.changedAt = time.Now()
	s.mu.Unlock()
}

// crashed records err and returns the consecutive crash count.
func (s *Slot) crashed(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCrashed
	s.crashes++
	s.consecutive++
	s.lastErr = err
	s.changedAt = time.Now()
	return s.consecutive
}

func (s *Slot) completed() {
	s.mu.Lock()
	s.state = StateCompleted
	s.completions++
	s.consecutive = 0
	s.changedAt = time.Now()
	s.mu.Unlock()
}

func (s *Slot) reported() {
	s.mu.Lock()
	s.state = StateReported
	s.escalated = true
	s.changedAt = time.Now()
	s.mu.Unlock()
}

// SlotStatus is a point-in-time view of a slot.
type SlotStatus struct {
	Name          string    `json:"name"`
	ID            string    `json:"id"`
	Policy        string    `json:"policy"`
	State         string    `json:"state"`
	Description   string    `json:"description,omitempty"`
	Constructions int       `json:"constructions"`
	Crashes       int       `json:"crashes"`
	Completions   int       `json:"completions"`
	Consecutive   int       `json:"consecutive_crashes"`
	LastError     string    `json:"last_error,omitempty"`
	Escalated     bool      `json:"escalated"`
	StartedAt     time.Time `json:"started_at"`
	ChangedAt     time.Time `json:"changed_at"`
}

// Status returns a snapshot of the slot.
func (s *Slot) Status() SlotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SlotStatus{
		Name:          s.name,
		ID:            s.id,
		Policy:        s.policy.String(),
		State:         s.state.String(),
		Description:   s.description,
		Constructions: s.constructions,
		Crashes:       s.crashes,
		Completions:   s.completions,
		Consecutive:   s.consecutive,
		Escalated:     s.escalated,
		StartedAt:     s.startedAt,
		ChangedAt:     s.changedAt,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
