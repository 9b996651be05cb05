package execution

import "context"

// key is the context key for the active execution.
type key struct{}

// NewContext returns a copy of parent carrying e.
func NewContext(parent context.Context, e *Execution) context.Context {
	return context.WithValue(parent, key{}, e)
}

// FromContext extracts the active execution from ctx.
// It returns the execution and whether it was present.
func FromContext(ctx context.Context) (*Execution, bool) {
	e, ok := ctx.Value(key{}).(*Execution)
	return e, ok && e != nil
}
