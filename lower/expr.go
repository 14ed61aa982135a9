// Package lower turns statements and expressions into flat instruction
// lists for one event.
package lower

import (
	"errors"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

var (
	// ErrRegisterPressure means an expression needs more live temporaries
	// than the machine has registers.
	ErrRegisterPressure = errors.New("expression too complex")

	// ErrBadOperator is an operator the target type does not support.
	ErrBadOperator = errors.New("invalid operator")
)

// Expr is an expression tree node.
type Expr interface {
	Pos() bytecode.SourceLocation
}

// Int is an integer literal.
type Int struct {
	Value int32
	At    bytecode.SourceLocation
}

// Str is a string literal.
type Str struct {
	Value string
	At    bytecode.SourceLocation
}

// Ref reads a variable.
type Ref struct {
	Name string
	At   bytecode.SourceLocation
}

// Unary applies a one-operand opcode (NOT, NEG, BWNOT, QCGET).
type Unary struct {
	Op bytecode.Opcode
	X  Expr
	At bytecode.SourceLocation
}

// Binary applies an accumulating opcode.
type Binary struct {
	Op   bytecode.Opcode
	L, R Expr
	At   bytecode.SourceLocation
}

func (e *Int) Pos() bytecode.SourceLocation    { return e.At }
func (e *Str) Pos() bytecode.SourceLocation    { return e.At }
func (e *Ref) Pos() bytecode.SourceLocation    { return e.At }
func (e *Unary) Pos() bytecode.SourceLocation  { return e.At }
func (e *Binary) Pos() bytecode.SourceLocation { return e.At }

// Result is a lowered expression: the code computing it and the operand
// that holds the value afterwards.
type Result struct {
	Code  []*bytecode.Instruction
	Value bytecode.Operand
	Type  program.DataType
}

type exprCompiler struct {
	ctx  *program.Context
	ints *registerPool
	strs *registerPool
	code []*bytecode.Instruction
}

func newExprCompiler(ctx *program.Context) *exprCompiler {
	return &exprCompiler{
		ctx:  ctx,
		ints: newRegisterPool(program.IntRegisters),
		strs: newRegisterPool(program.StrRegisters),
	}
}

// CompileInt lowers an integer expression. Leaves produce no code.
func CompileInt(ctx *program.Context, e Expr) (*Result, error) {
	c := newExprCompiler(ctx)
	v, err := c.intExpr(e)
	if err != nil {
		return nil, err
	}
	c.ints.release(v)
	return &Result{Code: c.code, Value: v, Type: program.TypeInt}, nil
}

// CompileStr lowers a string expression. Only concatenation is defined.
func CompileStr(ctx *program.Context, e Expr) (*Result, error) {
	c := newExprCompiler(ctx)
	v, err := c.strExpr(e)
	if err != nil {
		return nil, err
	}
	c.strs.release(v)
	return &Result{Code: c.code, Value: v, Type: program.TypeStr}, nil
}

func (c *exprCompiler) emit(ins *bytecode.Instruction, loc bytecode.SourceLocation) {
	c.code = append(c.code, ins.At(loc))
}

// checkVar enforces the declared type of a referenced variable. Unknown
// names are left for the linker to report.
func (c *exprCompiler) checkVar(name string, want program.DataType, loc bytecode.SourceLocation) error {
	v, ok := c.ctx.Variable(name)
	if !ok || v.Type == want {
		return nil
	}
	return program.Errorf(loc, program.ErrTypeMismatch, "%s is %s, used as %s", name, v.Type, want)
}

func (c *exprCompiler) intExpr(e Expr) (bytecode.Operand, error) {
	switch n := e.(type) {
	case *Int:
		return bytecode.Lit(n.Value), nil

	case *Ref:
		if err := c.checkVar(n.Name, program.TypeInt, n.At); err != nil {
			return bytecode.None(), err
		}
		return bytecode.Var(n.Name), nil

	case *Str:
		return bytecode.None(), program.Errorf(n.At, program.ErrTypeMismatch, "string %q used as int", n.Value)

	case *Unary:
		if !n.Op.IsUnary() {
			return bytecode.None(), program.Errorf(n.At, ErrBadOperator, "%s is not unary", n.Op)
		}
		reg, err := c.ints.alloc(n.At)
		if err != nil {
			return bytecode.None(), err
		}
		x, err := c.intExpr(n.X)
		if err != nil {
			return bytecode.None(), err
		}
		c.emit(bytecode.New(n.Op, bytecode.FlagTypeInt, reg, x), n.At)
		c.ints.release(x)
		return reg, nil

	case *Binary:
		if !n.Op.IsAccumulator() || n.Op == bytecode.OpStrCat {
			return bytecode.None(), program.Errorf(n.At, ErrBadOperator, "%s on int", n.Op)
		}
		l, err := c.intExpr(n.L)
		if err != nil {
			return bytecode.None(), err
		}
		r, err := c.intExpr(n.R)
		if err != nil {
			return bytecode.None(), err
		}
		if !c.ints.owns(l) {
			reg, err := c.ints.alloc(n.At)
			if err != nil {
				return bytecode.None(), err
			}
			c.emit(bytecode.New(bytecode.OpSetVar, bytecode.FlagTypeInt, reg, l), n.At)
			l = reg
		}
		c.emit(bytecode.New(n.Op, bytecode.FlagTypeInt, l, r), n.At)
		c.ints.release(r)
		return l, nil
	}
	return bytecode.None(), fmt.Errorf("%w: unsupported expression %T", ErrBadOperator, e)
}

func (c *exprCompiler) strExpr(e Expr) (bytecode.Operand, error) {
	switch n := e.(type) {
	case *Str:
		v, err := c.ctx.StringLiteral(n.Value, n.At)
		if err != nil {
			return bytecode.None(), err
		}
		return bytecode.Var(v.Name()), nil

	case *Ref:
		if err := c.checkVar(n.Name, program.TypeStr, n.At); err != nil {
			return bytecode.None(), err
		}
		return bytecode.Var(n.Name), nil

	case *Int:
		return bytecode.None(), program.Errorf(n.At, program.ErrTypeMismatch, "integer %d used as str", n.Value)

	case *Unary:
		return bytecode.None(), program.Errorf(n.At, program.ErrTypeMismatch, "%s is not defined on str", n.Op)

	case *Binary:
		if n.Op != bytecode.OpAddBy && n.Op != bytecode.OpStrCat {
			return bytecode.None(), program.Errorf(n.At, program.ErrTypeMismatch, "%s is not defined on str", n.Op)
		}
		l, err := c.strExpr(n.L)
		if err != nil {
			return bytecode.None(), err
		}
		r, err := c.strExpr(n.R)
		if err != nil {
			return bytecode.None(), err
		}
		if !c.strs.owns(l) {
			reg, err := c.strs.alloc(n.At)
			if err != nil {
				return bytecode.None(), err
			}
			c.emit(bytecode.New(bytecode.OpSetVar, bytecode.FlagTypeStr, reg, l), n.At)
			l = reg
		}
		c.emit(bytecode.New(bytecode.OpStrCat, bytecode.FlagTypeStr, l, r), n.At)
		c.strs.release(r)
		return l, nil
	}
	return bytecode.None(), fmt.Errorf("%w: unsupported expression %T", ErrBadOperator, e)
}
