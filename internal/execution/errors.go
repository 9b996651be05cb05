package execution

import (
	"errors"
	"fmt"
)

var (
	// ErrCanceled indicates the execution was canceled before it completed.
	ErrCanceled = errors.New("execution: canceled")
	// ErrTimeout indicates the execution ran past its time limit.
	ErrTimeout = errors.New("execution: timed out")
	// ErrUnknownStatement indicates a statement id that is not registered.
	ErrUnknownStatement = errors.New("execution: unknown statement")
)

// AssertionError reports a lifecycle call made in the wrong state.
// It signals a programming error in the caller.
type AssertionError struct {
	Op  string
	Msg string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("execution: assertion failed in %s: %s", e.Op, e.Msg)
}
