// Public domain.

package parinfo

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// Op identifies the kind of a node in a tie expression tree.
type Op int

const (
	OpConst Op = iota
	OpRef
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
)

// Expr is a tagged expression tree for a tied parameter.
//
// Leaves are constants or references to another parameter by index.
// Interior nodes combine one (OpNeg) or two operands.
type Expr struct {
	Op    Op
	Val   float64 // OpConst
	Index int     // OpRef
	X, Y  *Expr
}

// Const returns a constant leaf.
func Const(v float64) *Expr { return &Expr{Op: OpConst, Val: v} }

// Ref returns a leaf referencing parameter i.
func Ref(i int) *Expr { return &Expr{Op: OpRef, Index: i} }

// Eval evaluates the expression against parameter vector p.
func (e *Expr) Eval(p []float64) float64 {
	switch e.Op {
	case OpConst:
		return e.Val
	case OpRef:
		return p[e.Index]
	case OpNeg:
		return -e.X.Eval(p)
	case OpAdd:
		return e.X.Eval(p) + e.Y.Eval(p)
	case OpSub:
		return e.X.Eval(p) - e.Y.Eval(p)
	case OpMul:
		return e.X.Eval(p) * e.Y.Eval(p)
	case OpDiv:
		return e.X.Eval(p) / e.Y.Eval(p)
	}
	panic(fmt.Sprintf("parinfo: bad op %d", e.Op))
}

// Partial returns the derivative of the expression with respect to
// parameter i, evaluated at p.
func (e *Expr) Partial(p []float64, i int) float64 {
	switch e.Op {
	case OpConst:
		return 0
	case OpRef:
		if e.Index == i {
			return 1
		}
		return 0
	case OpNeg:
		return -e.X.Partial(p, i)
	case OpAdd:
		return e.X.Partial(p, i) + e.Y.Partial(p, i)
	case OpSub:
		return e.X.Partial(p, i) - e.Y.Partial(p, i)
	case OpMul:
		return e.X.Partial(p, i)*e.Y.Eval(p) + e.X.Eval(p)*e.Y.Partial(p, i)
	case OpDiv:
		y := e.Y.Eval(p)
		return (e.X.Partial(p, i)*y - e.X.Eval(p)*e.Y.Partial(p, i)) / (y * y)
	}
	panic(fmt.Sprintf("parinfo: bad op %d", e.Op))
}

// Refs returns the parameter indexes referenced by the expression, in
// order of appearance.  Duplicates are kept.
func (e *Expr) Refs() []int {
	var r []int
	var walk func(*Expr)
	walk = func(n *Expr) {
		if n == nil {
			return
		}
		if n.Op == OpRef {
			r = append(r, n.Index)
		}
		walk(n.X)
		walk(n.Y)
	}
	walk(e)
	return r
}

// String formats the expression in the same notation ParseTie accepts.
func (e *Expr) String() string {
	switch e.Op {
	case OpConst:
		return strconv.FormatFloat(e.Val, 'g', -1, 64)
	case OpRef:
		return fmt.Sprintf("p[%d]", e.Index)
	case OpNeg:
		return "-(" + e.X.String() + ")"
	}
	var op string
	switch e.Op {
	case OpAdd:
		op = "+"
	case OpSub:
		op = "-"
	case OpMul:
		op = "*"
	case OpDiv:
		op = "/"
	}
	return "(" + e.X.String() + op + e.Y.String() + ")"
}

// ParseTie parses a tie expression such as "p[1]+0.06" or "0.5*p[0]".
//
// The accepted grammar is the subset of Go expressions made of float
// literals, indexes p[N] with a literal N, parentheses, unary minus and
// the four arithmetic operators.  Nothing is evaluated at parse time.
func ParseTie(s string) (*Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty tie expression")
	}
	node, err := parser.ParseExpr(s)
	if err != nil {
		return nil, fmt.Errorf("tie %q: %v", s, err)
	}
	e, err := convert(node)
	if err != nil {
		return nil, fmt.Errorf("tie %q: %v", s, err)
	}
	return e, nil
}

func convert(n ast.Expr) (*Expr, error) {
	switch n := n.(type) {
	case *ast.ParenExpr:
		return convert(n.X)
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return nil, fmt.Errorf("unexpected literal %s", n.Value)
		}
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, err
		}
		return Const(v), nil
	case *ast.IndexExpr:
		id, ok := n.X.(*ast.Ident)
		if !ok || id.Name != "p" {
			return nil, fmt.Errorf("only p[N] may be indexed")
		}
		lit, ok := n.Index.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, fmt.Errorf("index of p must be an integer literal")
		}
		i, err := strconv.Atoi(lit.Value)
		if err != nil {
			return nil, err
		}
		return Ref(i), nil
	case *ast.UnaryExpr:
		x, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			return &Expr{Op: OpNeg, X: x}, nil
		case token.ADD:
			return x, nil
		}
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		y, err := convert(n.Y)
		if err != nil {
			return nil, err
		}
		var op Op
		switch n.Op {
		case token.ADD:
			op = OpAdd
		case token.SUB:
			op = OpSub
		case token.MUL:
			op = OpMul
		case token.QUO:
			op = OpDiv
		default:
			return nil, fmt.Errorf("unsupported operator %s", n.Op)
		}
		return &Expr{Op: op, X: x, Y: y}, nil
	}
	return nil, fmt.Errorf("unsupported expression %T", n)
}
