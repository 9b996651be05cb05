package resolver

import (
	"fmt"

	"github.com/hanpama/olapcore/internal/olap"
	"github.com/hanpama/olapcore/internal/query"
)

// Role is the syntactic position of a candidate identifier.
type Role int

const (
	RoleAxis Role = iota
	RoleSlicer
	RoleFormula
	RoleFunctionArg
	RoleCellProperty
)

var roleNames = [...]string{"axis", "slicer", "formula", "function-arg", "cell-property"}

func (r Role) String() string {
	if int(r) >= 0 && int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// CandidateSite is one identifier node that may need a member lookup.
type CandidateSite struct {
	Node *query.IdExpr
	// Role is RoleFunctionArg when the node sits inside a function, method
	// or property call, and the clause role otherwise.
	Role Role
	// Clause is the top-level clause containing the node.
	Clause Role
	// Axis is the axis ordinal when Clause is RoleAxis.
	Axis int
	// Function is the innermost enclosing function, method or property name.
	Function string
}

type walker struct {
	cube     *olap.Cube
	declared []olap.Id
	seen     map[*query.IdExpr]bool
	sites    []CandidateSite
}

// Walk lists the identifier nodes of q that are candidates for member
// resolution, in clause order: axes, slicer, formula bodies, cell
// properties. Within a clause nodes appear in source order. Declared
// formula names, level references and already bound nodes are skipped.
func Walk(q *query.Query, cube *olap.Cube) []CandidateSite {
	w := &walker{cube: cube, seen: make(map[*query.IdExpr]bool)}
	for _, f := range q.Formulas {
		w.declared = append(w.declared, f.Name)
	}
	for _, a := range q.Axes {
		w.walk(a.Exp, CandidateSite{Role: RoleAxis, Clause: RoleAxis, Axis: a.Ordinal})
	}
	w.walk(q.Slicer, CandidateSite{Role: RoleSlicer, Clause: RoleSlicer})
	for _, f := range q.Formulas {
		w.walk(f.Exp, CandidateSite{Role: RoleFormula, Clause: RoleFormula})
		for _, p := range f.Properties {
			w.walk(p.Exp, CandidateSite{Role: RoleFormula, Clause: RoleFormula})
		}
	}
	for _, id := range q.CellProperties {
		w.walk(id, CandidateSite{Role: RoleCellProperty, Clause: RoleCellProperty})
	}
	return w.sites
}

func (w *walker) walk(e query.Expr, site CandidateSite) {
	switch n := e.(type) {
	case nil:
	case *query.IdExpr:
		w.add(n, site)
	case *query.Call:
		inner := site
		switch n.Syntax {
		case query.SyntaxFunction, query.SyntaxMethod, query.SyntaxProperty:
			inner.Role = RoleFunctionArg
			inner.Function = n.Name
		}
		for _, a := range n.Args {
			w.walk(a, inner)
		}
	}
	// Member, level, hierarchy, dimension and null nodes are already bound.
}

func (w *walker) add(n *query.IdExpr, site CandidateSite) {
	if n == nil || n.Id.IsZero() || w.seen[n] {
		return
	}
	w.seen[n] = true
	if w.isDeclared(n.Id) || w.isLevelRef(n.Id) {
		return
	}
	site.Node = n
	w.sites = append(w.sites, site)
}

// isDeclared reports whether id names a WITH MEMBER or WITH SET of the
// query, or something below one.
func (w *walker) isDeclared(id olap.Id) bool {
	for _, d := range w.declared {
		if id.HasPrefix(d) {
			return true
		}
	}
	return false
}

// isLevelRef reports whether id is a hierarchy followed by exactly one
// segment naming a level of that hierarchy, e.g. [Time.Weekly].Week.
func (w *walker) isLevelRef(id olap.Id) bool {
	if w.cube == nil {
		return false
	}
	h, n := splitHierarchy(w.cube, id)
	if h == nil || id.Len() != n+1 {
		return false
	}
	return h.LookupLevel(id.At(n)) != nil
}
