// Package query holds the parsed form of a multidimensional query. Text
// parsing happens elsewhere; this package only models the tree.
package query

import (
	"github.com/hanpama/olapcore/internal/olap"
)

// Expr is a node of a query expression tree.
type Expr interface {
	exprNode()
}

// IdExpr is an identifier not yet bound to a schema element. Nodes are
// compared by pointer: two syntactically equal ids at different positions
// are distinct nodes.
type IdExpr struct {
	Id olap.Id
}

// MemberExpr is an identifier bound to a member.
type MemberExpr struct {
	Member *olap.Member
}

// NullMemberExpr stands in for a member that could not be found when the
// query ignores invalid members.
type NullMemberExpr struct {
	Hierarchy *olap.Hierarchy
	Id        olap.Id
}

// LevelExpr is an identifier bound to a level.
type LevelExpr struct {
	Level *olap.Level
}

// HierarchyExpr is an identifier bound to a hierarchy.
type HierarchyExpr struct {
	Hierarchy *olap.Hierarchy
}

// DimensionExpr is an identifier bound to a dimension.
type DimensionExpr struct {
	Dimension *olap.Dimension
}

// Syntax is the surface form of a function call.
type Syntax int

const (
	// SyntaxFunction is Name(args).
	SyntaxFunction Syntax = iota
	// SyntaxMethod is args[0].Name(args[1:]).
	SyntaxMethod
	// SyntaxProperty is args[0].Name.
	SyntaxProperty
	// SyntaxBraces is {args}.
	SyntaxBraces
	// SyntaxParentheses is (args), a tuple.
	SyntaxParentheses
	// SyntaxInfix is args[0] Name args[1].
	SyntaxInfix
	// SyntaxPrefix is Name args[0].
	SyntaxPrefix
)

// Call is a function, operator, set or tuple constructor.
type Call struct {
	Name   string
	Syntax Syntax
	Args   []Expr
}

// Literal is a string or numeric constant.
type Literal struct {
	Value any
}

func (*IdExpr) exprNode()         {}
func (*MemberExpr) exprNode()     {}
func (*NullMemberExpr) exprNode() {}
func (*LevelExpr) exprNode()      {}
func (*HierarchyExpr) exprNode()  {}
func (*DimensionExpr) exprNode()  {}
func (*Call) exprNode()           {}
func (*Literal) exprNode()        {}

// FormulaKind tells a calculated member from a named set.
type FormulaKind int

const (
	FormulaMember FormulaKind = iota
	FormulaSet
)

func (k FormulaKind) String() string {
	if k == FormulaSet {
		return "set"
	}
	return "member"
}

// Property is a member property in a WITH MEMBER clause, e.g. SOLVE_ORDER = 2.
type Property struct {
	Name string
	Exp  Expr
}

// Formula is one WITH MEMBER or WITH SET declaration. Name is the
// declared identifier; it is a declaration, not a reference.
type Formula struct {
	Kind       FormulaKind
	Name       olap.Id
	Exp        Expr
	Properties []Property
}

// Axis is one ON COLUMNS/ROWS/... clause.
type Axis struct {
	Name     string
	Ordinal  int
	Exp      Expr
	NonEmpty bool
}

// Query is a parsed SELECT statement.
type Query struct {
	Cube           string
	Formulas       []*Formula
	Axes           []*Axis
	Slicer         Expr // nil when there is no WHERE clause
	CellProperties []*IdExpr
}
