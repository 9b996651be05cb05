package events

import "time"

// ExecutionStart is emitted when a statement starts an execution.
type ExecutionStart struct {
	ExecutionID string
	StatementID string
	Timeout     time.Duration
}

// ExecutionEnd is emitted when a statement ends an execution.
type ExecutionEnd struct {
	ExecutionID string
	StatementID string
	State       string
	Err         error
	Duration    time.Duration
}

// LocusEnter is emitted when a frame is pushed on an execution's locus stack.
// Depth is the stack size after the push.
type LocusEnter struct {
	ExecutionID string
	Component   string
	Message     string
	Depth       int
}

// LocusExit is emitted when a frame is popped. Depth is the stack size before the pop.
type LocusExit struct {
	ExecutionID string
	Component   string
	Message     string
	Depth       int
	Duration    time.Duration
}
