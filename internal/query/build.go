package query

import (
	"strconv"

	"github.com/hanpama/olapcore/internal/olap"
)

// Id parses s into a new IdExpr. It panics on malformed text and is meant
// for tests and literals in code.
func Id(s string) *IdExpr { return &IdExpr{Id: olap.MustParseIdentifier(s)} }

// Fn builds a function-syntax call.
func Fn(name string, args ...Expr) *Call {
	return &Call{Name: name, Syntax: SyntaxFunction, Args: args}
}

// Method builds a method-syntax call on recv.
func Method(recv Expr, name string, args ...Expr) *Call {
	return &Call{Name: name, Syntax: SyntaxMethod, Args: append([]Expr{recv}, args...)}
}

// Prop builds a property access such as [Time].CurrentMember.
func Prop(recv Expr, name string) *Call {
	return &Call{Name: name, Syntax: SyntaxProperty, Args: []Expr{recv}}
}

// Set builds a {..} set constructor.
func Set(args ...Expr) *Call {
	return &Call{Name: "{}", Syntax: SyntaxBraces, Args: args}
}

// Tuple builds a (..) tuple constructor.
func Tuple(args ...Expr) *Call {
	return &Call{Name: "()", Syntax: SyntaxParentheses, Args: args}
}

// Op builds an infix operator call.
func Op(name string, left, right Expr) *Call {
	return &Call{Name: name, Syntax: SyntaxInfix, Args: []Expr{left, right}}
}

// Lit builds a literal.
func Lit(v any) *Literal { return &Literal{Value: v} }

// WithMember builds a calculated member declaration.
func WithMember(name string, exp Expr) *Formula {
	return &Formula{Kind: FormulaMember, Name: olap.MustParseIdentifier(name), Exp: exp}
}

// WithSet builds a named set declaration.
func WithSet(name string, exp Expr) *Formula {
	return &Formula{Kind: FormulaSet, Name: olap.MustParseIdentifier(name), Exp: exp}
}

// On builds an axis with the conventional name for ordinal.
func On(ordinal int, exp Expr) *Axis {
	return &Axis{Name: AxisName(ordinal), Ordinal: ordinal, Exp: exp}
}

var axisNames = []string{"COLUMNS", "ROWS", "PAGES", "CHAPTERS", "SECTIONS"}

// AxisName returns COLUMNS, ROWS, ... or AXIS(n).
func AxisName(ordinal int) string {
	if ordinal >= 0 && ordinal < len(axisNames) {
		return axisNames[ordinal]
	}
	return "AXIS(" + strconv.Itoa(ordinal) + ")"
}
