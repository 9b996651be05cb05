package resolver

import (
	"context"
	"sync"

	"github.com/hanpama/olapcore/internal/olap"
)

// LookupCall records one LookupChildrenByName invocation.
type LookupCall struct {
	Parent string   // parent unique name
	Names  []string // requested names, in request order
	Match  olap.MatchType
}

// MockReader wraps a SchemaReader and records every call. Hooks run after
// the wrapped reader returns and may replace its result or error.
type MockReader struct {
	mu    sync.Mutex
	inner olap.SchemaReader
	calls []LookupCall
	hook  func(ctx context.Context, call int, parent *olap.Member) error
}

// NewMockReader records calls made to inner.
func NewMockReader(inner olap.SchemaReader) *MockReader {
	return &MockReader{inner: inner}
}

// SetHook installs fn to run after each call. call is 1-based. A non-nil
// error from fn is returned instead of the wrapped result.
func (m *MockReader) SetHook(fn func(ctx context.Context, call int, parent *olap.Member) error) {
	m.mu.Lock()
	m.hook = fn
	m.mu.Unlock()
}

var _ olap.SchemaReader = (*MockReader)(nil)

func (m *MockReader) LookupChildrenByName(ctx context.Context, parent *olap.Member, names []olap.NameSegment, match olap.MatchType) (map[olap.NameSegment]*olap.Member, error) {
	rec := LookupCall{Parent: parent.UniqueName(), Match: match}
	for _, n := range names {
		rec.Names = append(rec.Names, n.Name)
	}
	m.mu.Lock()
	m.calls = append(m.calls, rec)
	n := len(m.calls)
	hook := m.hook
	m.mu.Unlock()

	res, err := m.inner.LookupChildrenByName(ctx, parent, names, match)
	if hook != nil {
		if herr := hook(ctx, n, parent); herr != nil {
			return nil, herr
		}
	}
	return res, err
}

// GetCalls returns a copy of the call log.
func (m *MockReader) GetCalls() []LookupCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LookupCall(nil), m.calls...)
}

// Reset clears the call log.
func (m *MockReader) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}
