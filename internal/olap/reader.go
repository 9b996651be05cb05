package olap

import (
	"context"
	"fmt"
	"strings"
)

// MatchType is the name-matching policy passed through to a SchemaReader.
type MatchType int

const (
	MatchExact MatchType = iota
	MatchExactSchema
	MatchBefore
	MatchAfter
	MatchAny
)

var matchTypeNames = [...]string{"exact", "exact_schema", "before", "after", "any"}

func (m MatchType) String() string {
	if int(m) >= 0 && int(m) < len(matchTypeNames) {
		return matchTypeNames[m]
	}
	return fmt.Sprintf("MatchType(%d)", int(m))
}

// IsExact reports whether only exact name matches are acceptable.
func (m MatchType) IsExact() bool { return m == MatchExact || m == MatchExactSchema }

// ParseMatchType converts a configuration string into a MatchType.
func ParseMatchType(s string) (MatchType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return MatchExact, nil
	}
	for i, n := range matchTypeNames {
		if n == key {
			return MatchType(i), nil
		}
	}
	return MatchExact, fmt.Errorf("%w: %q", ErrUnknownMatchType, s)
}

// SchemaReader resolves members by name. Implementations must be safe for
// concurrent use by independent statements.
type SchemaReader interface {
	// LookupChildrenByName resolves names among the children of parent in one
	// call. The result is keyed by the exact NameSegment values passed in;
	// names that could not be matched are absent.
	LookupChildrenByName(ctx context.Context, parent *Member, names []NameSegment, match MatchType) (map[NameSegment]*Member, error)
}

// MatchChildren applies match to an ordered list of children. Readers that
// can fetch all children of a parent share this logic.
func MatchChildren(children []*Member, names []NameSegment, match MatchType) map[NameSegment]*Member {
	out := make(map[NameSegment]*Member, len(names))
	if len(children) == 0 {
		return out
	}
	byKey := make(map[string]*Member, len(children))
	for _, c := range children {
		k := FoldName(c.Name)
		if _, dup := byKey[k]; !dup {
			byKey[k] = c
		}
	}
	for _, n := range names {
		key := n.Key()
		if m, ok := byKey[key]; ok {
			out[n] = m
			continue
		}
		switch match {
		case MatchBefore:
			if m := nearest(children, key, true); m != nil {
				out[n] = m
			}
		case MatchAfter:
			if m := nearest(children, key, false); m != nil {
				out[n] = m
			}
		case MatchAny:
			out[n] = children[0]
		}
	}
	return out
}

// nearest returns the child whose folded name is closest below (before) or
// above key.
func nearest(children []*Member, key string, before bool) *Member {
	var best *Member
	var bestKey string
	for _, c := range children {
		k := FoldName(c.Name)
		if before {
			if k < key && (best == nil || k > bestKey) {
				best, bestKey = c, k
			}
		} else {
			if k > key && (best == nil || k < bestKey) {
				best, bestKey = c, k
			}
		}
	}
	return best
}
