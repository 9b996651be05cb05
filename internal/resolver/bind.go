package resolver

import (
	"fmt"

	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

// Policy decides what happens to identifiers that did not resolve.
type Policy struct {
	Strict                          bool
	IgnoreInvalidMembers            bool
	IgnoreInvalidMembersDuringQuery bool
	// DuringQuery selects IgnoreInvalidMembersDuringQuery over
	// IgnoreInvalidMembers. It is set while executing a query as opposed to
	// validating a schema-level formula.
	DuringQuery bool
}

func (p Policy) ignoreInvalid() bool {
	if p.DuringQuery {
		return p.IgnoreInvalidMembersDuringQuery
	}
	return p.IgnoreInvalidMembers
}

// MemberNotFoundError reports an identifier that names no member.
type MemberNotFoundError struct {
	Id   olap.Id
	Cube string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("MDX object '%s' not found in cube '%s'", e.Id, e.Cube)
}

// Bind replaces every node of q present in m with its bound form: resolved
// and known nodes become member, hierarchy or dimension expressions. An unresolved node is an error under a strict policy that
// does not ignore invalid members; otherwise it becomes a NullMemberExpr.
// Nodes absent from m are left for the validator.
func Bind(q *query.Query, m *ResolutionMap, p Policy) error {
	return query.Rewrite(q, func(e query.Expr) (query.Expr, error) {
		id, ok := e.(*query.IdExpr)
		if !ok {
			return e, nil
		}
		entry, ok := m.Lookup(id)
		if !ok {
			return e, nil
		}
		switch entry.Status {
		case StatusResolved:
			return &query.MemberExpr{Member: entry.Member}, nil
		case StatusKnown:
			return boundExpr(entry.Element, e), nil
		default:
			if p.Strict && !p.ignoreInvalid() {
				return nil, &MemberNotFoundError{Id: id.Id, Cube: cubeName(m)}
			}
			return &query.NullMemberExpr{Hierarchy: entry.Hierarchy, Id: id.Id}, nil
		}
	})
}

func boundExpr(el olap.Element, orig query.Expr) query.Expr {
	switch v := el.(type) {
	case *olap.Member:
		return &query.MemberExpr{Member: v}
	case *olap.Hierarchy:
		return &query.HierarchyExpr{Hierarchy: v}
	case *olap.Dimension:
		return &query.DimensionExpr{Dimension: v}
	default:
		return orig
	}
}

func cubeName(m *ResolutionMap) string {
	if m.Cube == nil {
		return ""
	}
	return m.Cube.Name
}
