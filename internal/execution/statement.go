package execution

import (
	"fmt"
	"sync"
	"time"
)

// Phase is the lifecycle phase of a Statement.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseStarted
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseStarted:
		return "started"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Statement owns a sequence of executions, at most one active at a time.
// After End a new execution may be started.
type Statement struct {
	Label   string
	Created time.Time

	mu                sync.Mutex
	id                StatementID
	phase             Phase
	current           *Execution
	cancelBeforeStart bool
	executions        int
}

// NewStatement creates a statement in the Created phase.
func NewStatement(label string) *Statement {
	return &Statement{Label: label, Created: time.Now()}
}

// ID returns the id assigned by a Registry, or the zero id.
func (s *Statement) ID() StatementID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Start makes e the active execution. It fails if another execution is
// active. A cancel requested before start is applied to e immediately.
func (s *Statement) Start(e *Execution) error {
	s.mu.Lock()
	if e.Statement != s {
		s.mu.Unlock()
		return &AssertionError{Op: "Start", Msg: fmt.Sprintf("execution %s belongs to another statement", e.ID)}
	}
	if s.current != nil {
		cur := s.current
		s.mu.Unlock()
		if cur == e {
			return &AssertionError{Op: "Start", Msg: fmt.Sprintf("execution %s already started", e.ID)}
		}
		return &AssertionError{Op: "Start", Msg: fmt.Sprintf("execution %s is still active", cur.ID)}
	}
	if e.State() != StateFresh && e.State() != StateCanceled {
		s.mu.Unlock()
		return &AssertionError{Op: "Start", Msg: fmt.Sprintf("execution %s is %s", e.ID, e.State())}
	}
	s.current = e
	s.phase = PhaseStarted
	s.executions++
	cancelNow := s.cancelBeforeStart
	s.cancelBeforeStart = false
	s.mu.Unlock()

	e.begin()
	if cancelNow {
		e.Cancel()
	}
	return nil
}

// Cancel cancels the active execution, or marks the statement so the next
// started execution is canceled at once.
func (s *Statement) Cancel() {
	s.mu.Lock()
	e := s.current
	if e == nil {
		s.cancelBeforeStart = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	e.Cancel()
}

// End finishes e. It fails if e is not the active execution.
func (s *Statement) End(e *Execution) error {
	s.mu.Lock()
	if s.current == nil || s.current != e {
		s.mu.Unlock()
		return &AssertionError{Op: "End", Msg: fmt.Sprintf("execution %s is not active", e.ID)}
	}
	s.current = nil
	s.phase = PhaseEnded
	s.mu.Unlock()

	e.finish()
	return nil
}

// Phase returns the current phase.
func (s *Statement) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current returns the active execution, or nil.
func (s *Statement) Current() *Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CancelPending reports whether a cancel is waiting for the next start.
func (s *Statement) CancelPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelBeforeStart
}

// Executions returns how many executions have been started.
func (s *Statement) Executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executions
}
