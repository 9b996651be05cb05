package query

import (
	"fmt"
	"strings"
)

// Visit walks e depth-first in source order. fn receives each node and the
// innermost enclosing call (nil at the top). Returning false skips the
// node's children.
func Visit(e Expr, fn func(e Expr, parent *Call) bool) {
	visit(e, nil, fn)
}

func visit(e Expr, parent *Call, fn func(Expr, *Call) bool) {
	if e == nil {
		return
	}
	if !fn(e, parent) {
		return
	}
	if c, ok := e.(*Call); ok {
		for _, a := range c.Args {
			visit(a, c, fn)
		}
	}
}

// Rewrite replaces expressions bottom-up across every clause of q. fn
// returns the replacement, or its argument to keep the node.
func Rewrite(q *Query, fn func(Expr) (Expr, error)) error {
	var err error
	for _, f := range q.Formulas {
		if f.Exp, err = rewrite(f.Exp, fn); err != nil {
			return err
		}
		for i := range f.Properties {
			if f.Properties[i].Exp, err = rewrite(f.Properties[i].Exp, fn); err != nil {
				return err
			}
		}
	}
	for _, a := range q.Axes {
		if a.Exp, err = rewrite(a.Exp, fn); err != nil {
			return err
		}
	}
	if q.Slicer, err = rewrite(q.Slicer, fn); err != nil {
		return err
	}
	return nil
}

func rewrite(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	if c, ok := e.(*Call); ok {
		for i, a := range c.Args {
			na, err := rewrite(a, fn)
			if err != nil {
				return nil, err
			}
			c.Args[i] = na
		}
	}
	return fn(e)
}

// Format renders e in MDX surface syntax.
func Format(e Expr) string {
	var b strings.Builder
	format(&b, e)
	return b.String()
}

func format(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *IdExpr:
		b.WriteString(n.Id.String())
	case *MemberExpr:
		b.WriteString(n.Member.UniqueName())
	case *NullMemberExpr:
		b.WriteString("NULL")
	case *LevelExpr:
		b.WriteString(n.Level.UniqueName())
	case *HierarchyExpr:
		b.WriteString(n.Hierarchy.UniqueName())
	case *DimensionExpr:
		b.WriteString(n.Dimension.UniqueName())
	case *Literal:
		if s, ok := n.Value.(string); ok {
			b.WriteString("'" + strings.ReplaceAll(s, "'", "''") + "'")
		} else {
			fmt.Fprint(b, n.Value)
		}
	case *Call:
		formatCall(b, n)
	default:
		fmt.Fprintf(b, "<%T>", e)
	}
}

func formatCall(b *strings.Builder, c *Call) {
	list := func(args []Expr) {
		for i, a := range args {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, a)
		}
	}
	switch c.Syntax {
	case SyntaxBraces:
		b.WriteByte('{')
		list(c.Args)
		b.WriteByte('}')
	case SyntaxParentheses:
		b.WriteByte('(')
		list(c.Args)
		b.WriteByte(')')
	case SyntaxProperty:
		format(b, c.Args[0])
		b.WriteString("." + c.Name)
	case SyntaxMethod:
		format(b, c.Args[0])
		b.WriteString("." + c.Name + "(")
		list(c.Args[1:])
		b.WriteByte(')')
	case SyntaxInfix:
		format(b, c.Args[0])
		b.WriteString(" " + c.Name + " ")
		format(b, c.Args[1])
	case SyntaxPrefix:
		b.WriteString(c.Name + " ")
		format(b, c.Args[0])
	default:
		b.WriteString(c.Name + "(")
		list(c.Args)
		b.WriteByte(')')
	}
}

// String renders q as a SELECT statement.
func (q *Query) String() string {
	var b strings.Builder
	if len(q.Formulas) > 0 {
		b.WriteString("WITH")
		for _, f := range q.Formulas {
			kw := " MEMBER "
			if f.Kind == FormulaSet {
				kw = " SET "
			}
			b.WriteString(kw + f.Name.String() + " AS ")
			format(&b, f.Exp)
			for _, p := range f.Properties {
				b.WriteString(", " + p.Name + " = ")
				format(&b, p.Exp)
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("SELECT")
	for i, a := range q.Axes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		if a.NonEmpty {
			b.WriteString("NON EMPTY ")
		}
		format(&b, a.Exp)
		b.WriteString(" ON " + a.Name)
	}
	b.WriteString("\nFROM " + "[" + strings.ReplaceAll(q.Cube, "]", "]]") + "]")
	if q.Slicer != nil {
		b.WriteString("\nWHERE ")
		format(&b, q.Slicer)
	}
	if len(q.CellProperties) > 0 {
		b.WriteString("\nCELL PROPERTIES ")
		for i, p := range q.CellProperties {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Id.String())
		}
	}
	return b.String()
}
