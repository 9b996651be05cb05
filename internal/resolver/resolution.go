package resolver

import (
	"fmt"

	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

// Status is the outcome recorded for one node.
type Status int

const (
	// StatusUnresolved: the node was looked up (or its ancestor was) and not found,
	// or the run stopped before reaching it.
	StatusUnresolved Status = iota
	// StatusResolved: a lookup found the member.
	StatusResolved
	// StatusKnown: the node names an element available without a lookup.
	StatusKnown
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusResolved:
		return "resolved"
	case StatusKnown:
		return "known"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Entry is the resolution of one query node.
type Entry struct {
	Node   *query.IdExpr
	Status Status
	// Member is set for resolved nodes and for nodes naming an All member.
	Member *olap.Member
	// Element is the bound element for resolved and known nodes.
	Element   olap.Element
	Hierarchy *olap.Hierarchy
	Role      Role
	// Reason is why a known node was not batched.
	Reason Reason
}

// Stats summarises one resolution run.
type Stats struct {
	Candidates int
	Rounds     int
	Lookups    int
	Dropped    int // groups skipped because their parent was not found
}

// ResolutionMap maps query nodes, by identity, to their resolution. It is
// built fresh for each run and is not shared between goroutines.
type ResolutionMap struct {
	Cube  *olap.Cube
	Stats Stats

	index   map[*query.IdExpr]int
	entries []Entry
}

func newResolutionMap(cube *olap.Cube) *ResolutionMap {
	return &ResolutionMap{Cube: cube, index: make(map[*query.IdExpr]int)}
}

func (m *ResolutionMap) add(e Entry) {
	if _, ok := m.index[e.Node]; ok {
		return
	}
	m.index[e.Node] = len(m.entries)
	m.entries = append(m.entries, e)
}

// Lookup returns the entry for n.
func (m *ResolutionMap) Lookup(n *query.IdExpr) (Entry, bool) {
	i, ok := m.index[n]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Member returns the member n resolved to, or nil.
func (m *ResolutionMap) Member(n *query.IdExpr) *olap.Member {
	e, _ := m.Lookup(n)
	return e.Member
}

// Len returns the number of entries.
func (m *ResolutionMap) Len() int { return len(m.entries) }

// Entries returns all entries in candidate order.
func (m *ResolutionMap) Entries() []Entry { return append([]Entry(nil), m.entries...) }

// Resolved returns the node to member mapping of resolved entries.
func (m *ResolutionMap) Resolved() map[*query.IdExpr]*olap.Member {
	out := make(map[*query.IdExpr]*olap.Member)
	for _, e := range m.entries {
		if e.Status == StatusResolved {
			out[e.Node] = e.Member
		}
	}
	return out
}

// Unresolved lists the unresolved nodes in candidate order.
func (m *ResolutionMap) Unresolved() []*query.IdExpr {
	var out []*query.IdExpr
	for _, e := range m.entries {
		if e.Status == StatusUnresolved {
			out = append(out, e.Node)
		}
	}
	return out
}

// Count returns how many entries have status s.
func (m *ResolutionMap) Count(s Status) int {
	n := 0
	for _, e := range m.entries {
		if e.Status == s {
			n++
		}
	}
	return n
}
