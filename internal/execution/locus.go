package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventbus "github.com/hanpama/olapcore/internal/eventbus"
	events "github.com/hanpama/olapcore/internal/events"
)

// Frame is one entry of a Locus stack: the component doing work on behalf
// of an execution.
type Frame struct {
	Execution *Execution
	Component string
	Message   string
	Entered   time.Time
}

// Locus is a LIFO stack of frames used for latency attribution. It carries
// no resolution semantics.
type Locus struct {
	mu     sync.Mutex
	frames []*Frame
}

type locusKey struct{}

func withLocus(ctx context.Context, l *Locus) context.Context {
	return context.WithValue(ctx, locusKey{}, l)
}

// WithLocus returns ctx carrying a locus, reusing one already present.
func WithLocus(ctx context.Context) (context.Context, *Locus) {
	if l := LocusFrom(ctx); l != nil {
		return ctx, l
	}
	l := &Locus{}
	return withLocus(ctx, l), l
}

// LocusFrom returns the locus carried by ctx, or nil.
func LocusFrom(ctx context.Context) *Locus {
	l, _ := ctx.Value(locusKey{}).(*Locus)
	return l
}

// Enter pushes a frame. Every Enter must be paired with an Exit of the
// returned frame, in LIFO order.
func (l *Locus) Enter(ctx context.Context, e *Execution, component, message string) *Frame {
	f := &Frame{Execution: e, Component: component, Message: message, Entered: time.Now()}
	l.mu.Lock()
	l.frames = append(l.frames, f)
	depth := len(l.frames)
	l.mu.Unlock()

	eventbus.Publish(ctx, events.LocusEnter{
		ExecutionID: executionID(e),
		Component:   component,
		Message:     message,
		Depth:       depth,
	})
	return f
}

// Exit pops f. It panics if f is not the top frame.
func (l *Locus) Exit(ctx context.Context, f *Frame) {
	l.mu.Lock()
	n := len(l.frames)
	if n == 0 || l.frames[n-1] != f {
		top := "<empty>"
		if n > 0 {
			top = l.frames[n-1].Component
		}
		l.mu.Unlock()
		panic(fmt.Sprintf("execution: locus exit of %q but top frame is %s", f.Component, top))
	}
	l.frames[n-1] = nil
	l.frames = l.frames[:n-1]
	l.mu.Unlock()

	eventbus.Publish(ctx, events.LocusExit{
		ExecutionID: executionID(f.Execution),
		Component:   f.Component,
		Message:     f.Message,
		Depth:       n,
		Duration:    time.Since(f.Entered),
	})
}

// Depth returns the number of frames on the stack.
func (l *Locus) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

// Peek returns the top frame, or nil.
func (l *Locus) Peek() *Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[len(l.frames)-1]
}

// Frames returns a snapshot of the stack, bottom first.
func (l *Locus) Frames() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Frame, len(l.frames))
	for i, f := range l.frames {
		out[i] = *f
	}
	return out
}

// Execute runs fn inside a frame attributed to component. The frame is
// popped on every exit path, including a panic in fn.
func Execute(ctx context.Context, e *Execution, component, message string, fn func(context.Context) error) error {
	ctx, l := WithLocus(ctx)
	f := l.Enter(ctx, e, component, message)
	defer l.Exit(ctx, f)
	return fn(ctx)
}

func executionID(e *Execution) string {
	if e == nil {
		return ""
	}
	return e.ID.String()
}
