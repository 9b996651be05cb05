package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"

	"github.com/google/uuid"
)

// State is the lifecycle state of one Execution.
type State int

const (
	StateFresh State = iota
	StateRunning
	StateCanceled
	StateTimeout
	StateError
	StateDone
)

var stateNames = [...]string{"fresh", "running", "canceled", "timeout", "error", "done"}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Execution is one run of a statement. Cancellation and timeout are
// cooperative: work polls CheckCancelOrTimeout between units.
type Execution struct {
	ID        uuid.UUID
	Statement *Statement
	Timeout   time.Duration

	mu      sync.Mutex
	state   State
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelCauseFunc
	stop    context.CancelFunc
	locus   *Locus
	started time.Time
	err     error
}

// NewExecution creates a fresh execution of s. A zero timeout means no limit.
// The execution's context derives from ctx once the statement starts it.
func (s *Statement) NewExecution(ctx context.Context, timeout time.Duration) *Execution {
	return &Execution{
		ID:        uuid.New(),
		Statement: s,
		Timeout:   timeout,
		parent:    ctx,
		locus:     &Locus{},
	}
}

func (e *Execution) begin() {
	e.mu.Lock()
	parent := e.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	e.stop = func() {}
	if e.Timeout > 0 {
		ctx, e.stop = context.WithTimeoutCause(ctx, e.Timeout, e.timeoutError())
	}
	ctx = withLocus(NewContext(ctx, e), e.locus)
	e.ctx, e.cancel = ctx, cancel
	e.started = time.Now()
	if e.state == StateFresh {
		e.state = StateRunning
	} else if e.state == StateCanceled {
		cancel(ErrCanceled)
	}
	e.mu.Unlock()

	eventbus.Publish(ctx, events.ExecutionStart{
		ExecutionID: e.ID.String(),
		StatementID: e.statementID(),
		Timeout:     e.Timeout,
	})
}

func (e *Execution) finish() {
	e.mu.Lock()
	if e.state == StateRunning && e.ctx != nil && e.ctx.Err() != nil {
		e.observeDone()
	}
	switch e.state {
	case StateRunning, StateFresh:
		e.state = StateDone
	}
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	state, err, started := e.state, e.err, e.started
	if e.stop != nil {
		e.stop()
	}
	if e.cancel != nil {
		e.cancel(context.Canceled)
	}
	e.mu.Unlock()

	eventbus.Publish(ctx, events.ExecutionEnd{
		ExecutionID: e.ID.String(),
		StatementID: e.statementID(),
		State:       state.String(),
		Err:         err,
		Duration:    time.Since(started),
	})
}

func (e *Execution) statementID() string {
	if e.Statement == nil {
		return ""
	}
	return e.Statement.ID().String()
}

// Context returns the context work should run under. It carries the
// execution and its locus. Before the execution starts it is the parent
// context given to NewExecution.
func (e *Execution) Context() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != nil {
		return e.ctx
	}
	if e.parent != nil {
		return e.parent
	}
	return context.Background()
}

// Locus returns the execution's call-attribution stack.
func (e *Execution) Locus() *Locus { return e.locus }

// Cancel requests cancellation. It is idempotent and has no effect on a
// finished execution.
func (e *Execution) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateFresh:
		e.state = StateCanceled
	case StateRunning:
		e.state = StateCanceled
		e.cancel(ErrCanceled)
	}
}

// Fail records err as the outcome of a running execution.
func (e *Execution) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning {
		e.state = StateError
		e.err = err
	}
}

// CheckCancelOrTimeout returns ErrCanceled or an error wrapping ErrTimeout
// once the execution has been canceled or has run out of time.
func (e *Execution) CheckCancelOrTimeout() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning && e.ctx != nil && e.ctx.Err() != nil {
		e.observeDone()
	}
	switch e.state {
	case StateCanceled:
		return ErrCanceled
	case StateTimeout:
		return e.timeoutError()
	}
	return nil
}

// observeDone maps a finished context onto the execution state. Callers hold e.mu.
func (e *Execution) observeDone() {
	cause := context.Cause(e.ctx)
	if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		e.state = StateTimeout
		return
	}
	e.state = StateCanceled
}

func (e *Execution) timeoutError() error {
	return fmt.Errorf("%w after %s", ErrTimeout, e.Timeout)
}

// State returns the current state.
func (e *Execution) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRunning && e.ctx != nil && e.ctx.Err() != nil {
		e.observeDone()
	}
	return e.state
}

// Started returns when the execution started, or the zero time.
func (e *Execution) Started() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}
