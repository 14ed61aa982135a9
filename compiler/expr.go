package compiler

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/gqc/lower"
	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// binop is an infix operator with its binding power. Higher binds tighter;
// all operators are left-associative.
type binop struct {
	op    bytecode.Opcode
	level int
}

var binops = map[string]binop{
	"||": {bytecode.OpOr, 1},
	"&&": {bytecode.OpAnd, 2},
	"|":  {bytecode.OpBwOr, 3},
	"^":  {bytecode.OpBwXor, 4},
	"&":  {bytecode.OpBwAnd, 5},
	"==": {bytecode.OpEq, 6},
	"!=": {bytecode.OpNe, 6},
	"<":  {bytecode.OpLt, 7},
	">":  {bytecode.OpGt, 7},
	"<=": {bytecode.OpLe, 7},
	">=": {bytecode.OpGe, 7},
	"<<": {bytecode.OpBwShl, 8},
	">>": {bytecode.OpBwShr, 8},
	"+":  {bytecode.OpAddBy, 9},
	"-":  {bytecode.OpSubBy, 9},
	"*":  {bytecode.OpMulBy, 10},
	"/":  {bytecode.OpDivBy, 10},
	"%":  {bytecode.OpModBy, 10},
}

var unops = map[string]bytecode.Opcode{
	"!": bytecode.OpNot,
	"-": bytecode.OpNeg,
	"~": bytecode.OpBwNot,
}

// exprBuilder converts parsed expressions into lowering trees.
type exprBuilder struct {
	file string
}

// build applies operator precedence to the flat chain in e.
func (b *exprBuilder) build(e *Expr) (lower.Expr, error) {
	head, err := b.unary(e.Head)
	if err != nil {
		return nil, err
	}
	operands := []lower.Expr{head}
	ops := make([]*OpTerm, 0, len(e.Tail))
	for _, t := range e.Tail {
		if _, ok := binops[t.Op]; !ok {
			return nil, program.Errorf(location(b.file, t.Pos), lower.ErrBadOperator, "unknown operator %q", t.Op)
		}
		x, err := b.unary(t.Operand)
		if err != nil {
			return nil, err
		}
		ops = append(ops, t)
		operands = append(operands, x)
	}
	c := &climber{file: b.file, ops: ops, operands: operands}
	return c.parse(head, 1), nil
}

// climber is a precedence-climbing pass over an operator chain.
type climber struct {
	file     string
	ops      []*OpTerm
	operands []lower.Expr
	i        int // index of the next operator
}

func (c *climber) parse(lhs lower.Expr, min int) lower.Expr {
	for c.i < len(c.ops) {
		t := c.ops[c.i]
		op := binops[t.Op]
		if op.level < min {
			break
		}
		c.i++
		rhs := c.operands[c.i]
		for c.i < len(c.ops) && binops[c.ops[c.i].Op].level > op.level {
			rhs = c.parse(rhs, op.level+1)
		}
		lhs = &lower.Binary{Op: op.op, L: lhs, R: rhs, At: location(c.file, t.Pos)}
	}
	return lhs
}

func (b *exprBuilder) unary(u *Unary) (lower.Expr, error) {
	at := location(b.file, u.Pos)
	if u.Primary != nil {
		return b.primary(u.Primary)
	}
	// Fold a minus directly in front of an integer literal so the most
	// negative int32 is reachable.
	if u.Op == "-" && u.Operand.Primary != nil && u.Operand.Primary.Int != nil {
		v, err := parseInt(*u.Operand.Primary.Int, true, at)
		if err != nil {
			return nil, err
		}
		return &lower.Int{Value: v, At: at}, nil
	}
	op, ok := unops[u.Op]
	if !ok {
		return nil, program.Errorf(at, lower.ErrBadOperator, "unknown operator %q", u.Op)
	}
	x, err := b.unary(u.Operand)
	if err != nil {
		return nil, err
	}
	return &lower.Unary{Op: op, X: x, At: at}, nil
}

func (b *exprBuilder) primary(p *Primary) (lower.Expr, error) {
	at := location(b.file, p.Pos)
	switch {
	case p.Int != nil:
		v, err := parseInt(*p.Int, false, at)
		if err != nil {
			return nil, err
		}
		return &lower.Int{Value: v, At: at}, nil
	case p.Str != nil:
		return &lower.Str{Value: *p.Str, At: at}, nil
	case p.QCGet != nil:
		x, err := b.build(p.QCGet)
		if err != nil {
			return nil, err
		}
		return &lower.Unary{Op: bytecode.OpQCGet, X: x, At: at}, nil
	case p.Ident != nil:
		return &lower.Ref{Name: *p.Ident, At: at}, nil
	case p.Sub != nil:
		return b.build(p.Sub)
	}
	return nil, program.Errorf(at, ErrSyntax, "empty expression")
}

// parseInt converts an Int token to an int32. Hex literals up to
// 0xFFFFFFFF are taken as bit patterns.
func parseInt(text string, neg bool, at bytecode.SourceLocation) (int32, error) {
	v, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return 0, program.Errorf(at, program.ErrInvalidValue, "bad integer %s", text)
	}
	if !neg && v <= math.MaxUint32 && strings.HasPrefix(strings.ToLower(text), "0x") {
		return int32(uint32(v)), nil
	}
	if neg {
		v = -v
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, program.Errorf(at, program.ErrInvalidValue, "integer %s out of range", text)
	}
	return int32(v), nil
}
