package execution

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// StatementID is an opaque handle into a Registry. A slot is reused after
// deregistration with a bumped generation, so stale ids never alias a new
// statement.
type StatementID struct {
	slot uint32
	gen  uint32
}

// IsZero reports whether id was never assigned.
func (id StatementID) IsZero() bool { return id.gen == 0 }

func (id StatementID) String() string {
	if id.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%d", id.slot, id.gen)
}

// ParseStatementID parses the String form of a StatementID.
func ParseStatementID(s string) (StatementID, error) {
	slot, gen, ok := strings.Cut(s, ".")
	if !ok {
		return StatementID{}, fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}
	sl, err := strconv.ParseUint(slot, 10, 32)
	if err != nil {
		return StatementID{}, fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return StatementID{}, fmt.Errorf("%w: %q", ErrUnknownStatement, s)
	}
	return StatementID{slot: uint32(sl), gen: uint32(g)}, nil
}

type registrySlot struct {
	gen  uint32
	stmt *Statement
}

// Registry is an arena of open statements indexed by StatementID.
// Statements are removed by an explicit Deregister when they close.
type Registry struct {
	mu    sync.RWMutex
	slots []registrySlot
	free  []uint32
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register stores s and assigns its id.
func (r *Registry) Register(s *Statement) StatementID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, registrySlot{})
	}
	sl := &r.slots[idx]
	sl.gen++
	sl.stmt = s
	r.count++
	id := StatementID{slot: idx, gen: sl.gen}
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return id
}

// Deregister removes the statement with id.
func (r *Registry) Deregister(id StatementID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl := r.lookup(id)
	if sl == nil {
		return fmt.Errorf("%w: %s", ErrUnknownStatement, id)
	}
	sl.stmt = nil
	r.free = append(r.free, id.slot)
	r.count--
	return nil
}

// Get returns the statement with id.
func (r *Registry) Get(id StatementID) (*Statement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl := r.lookup(id)
	if sl == nil {
		return nil, false
	}
	return sl.stmt, true
}

// Cancel cancels the statement with id.
func (r *Registry) Cancel(id StatementID) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStatement, id)
	}
	s.Cancel()
	return nil
}

// List returns the registered statements in slot order.
func (r *Registry) List() []*Statement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Statement, 0, r.count)
	for _, sl := range r.slots {
		if sl.stmt != nil {
			out = append(out, sl.stmt)
		}
	}
	return out
}

// Len returns the number of registered statements.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

func (r *Registry) lookup(id StatementID) *registrySlot {
	if id.IsZero() || int(id.slot) >= len(r.slots) {
		return nil
	}
	sl := &r.slots[id.slot]
	if sl.gen != id.gen || sl.stmt == nil {
		return nil
	}
	return sl
}
