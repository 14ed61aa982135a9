package lower

import (
	"testing"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
	"github.com/nalgeon/be"
)

var at = bytecode.SourceLocation{File: "t.gqc", Line: 3, Column: 5}

func newTestContext(t *testing.T) *program.Context {
	t.Helper()
	ctx := program.NewContext()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "x", "y"} {
		_, err := ctx.Define(program.TypeInt, name, program.IntValue(0), program.Volatile, at)
		be.Err(t, err, nil)
	}
	for _, name := range []string{"s", "t"} {
		_, err := ctx.Define(program.TypeStr, name, program.StrValue(""), program.Volatile, at)
		be.Err(t, err, nil)
	}
	return ctx
}

func ref(name string) Expr { return &Ref{Name: name, At: at} }
func lit(v int32) Expr     { return &Int{Value: v, At: at} }
func bin(op bytecode.Opcode, l, r Expr) Expr {
	return &Binary{Op: op, L: l, R: r, At: at}
}

func TestCompileIntLeaf(t *testing.T) {
	ctx := newTestContext(t)

	res, err := CompileInt(ctx, lit(7))
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 0)
	be.True(t, res.Value.IsLiteral())
	be.Equal(t, res.Value.Value, int32(7))

	res, err = CompileInt(ctx, ref("x"))
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 0)
	be.True(t, res.Value.IsVar("x"))
}

func TestCompileIntAddLiteral(t *testing.T) {
	ctx := newTestContext(t)

	res, err := CompileInt(ctx, bin(bytecode.OpAddBy, ref("y"), lit(1)))
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 2)

	set, add := res.Code[0], res.Code[1]
	be.Equal(t, set.Op, bytecode.OpSetVar)
	be.True(t, set.Args[0].IsVar("I0.reg"))
	be.True(t, set.Args[1].IsVar("y"))
	be.Equal(t, set.Flags, bytecode.FlagTypeInt)

	be.Equal(t, add.Op, bytecode.OpAddBy)
	be.True(t, add.Args[0].IsVar("I0.reg"))
	be.Equal(t, add.Args[1].Value, int32(1))
	be.Equal(t, add.Flags, bytecode.FlagTypeInt|bytecode.FlagLiteralArg2)
	be.Equal(t, add.Loc, at)

	be.True(t, res.Value.IsVar("I0.reg"))
}

func TestCompileIntLeafLeftLoadedAfterRight(t *testing.T) {
	ctx := newTestContext(t)

	// y + (x * 2)
	res, err := CompileInt(ctx, bin(bytecode.OpAddBy, ref("y"), bin(bytecode.OpMulBy, ref("x"), lit(2))))
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 4)

	be.Equal(t, res.Code[0].Op, bytecode.OpSetVar)
	be.True(t, res.Code[0].Args[0].IsVar("I0.reg"))
	be.True(t, res.Code[0].Args[1].IsVar("x"))
	be.Equal(t, res.Code[1].Op, bytecode.OpMulBy)

	be.Equal(t, res.Code[2].Op, bytecode.OpSetVar)
	be.True(t, res.Code[2].Args[0].IsVar("I1.reg"))
	be.True(t, res.Code[2].Args[1].IsVar("y"))

	add := res.Code[3]
	be.Equal(t, add.Op, bytecode.OpAddBy)
	be.True(t, add.Args[0].IsVar("I1.reg"))
	be.True(t, add.Args[1].IsVar("I0.reg"))
	be.True(t, res.Value.IsVar("I1.reg"))
}

func TestCompileIntRightNestedFitsTwoRegisters(t *testing.T) {
	ctx := newTestContext(t)

	// a * (b * (c * d))
	e := bin(bytecode.OpMulBy, ref("a"),
		bin(bytecode.OpMulBy, ref("b"),
			bin(bytecode.OpMulBy, ref("c"), ref("d"))))
	res, err := CompileInt(ctx, e)
	be.Err(t, err, nil)

	for _, ins := range res.Code {
		for _, arg := range ins.Args {
			if arg.Kind == bytecode.OperandSymbol && program.IsRegister(arg.Name) {
				be.True(t, arg.IsVar("I0.reg") || arg.IsVar("I1.reg"))
			}
		}
	}
	last := res.Code[len(res.Code)-1]
	be.Equal(t, last.Op, bytecode.OpMulBy)
	be.True(t, res.Value.IsVar("I0.reg"))
}

func TestCompileIntBothSidesInRegisters(t *testing.T) {
	ctx := newTestContext(t)

	// (a - b) * (c - d)
	e := bin(bytecode.OpMulBy,
		bin(bytecode.OpSubBy, ref("a"), ref("b")),
		bin(bytecode.OpSubBy, ref("c"), ref("d")))
	res, err := CompileInt(ctx, e)
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 5)

	mul := res.Code[4]
	be.True(t, mul.Args[0].IsVar("I0.reg"))
	be.True(t, mul.Args[1].IsVar("I1.reg"))
}

func TestCompileIntRegisterPressure(t *testing.T) {
	ctx := newTestContext(t)

	// (a*b) * ((c*d) * (e*f)) keeps three temporaries alive.
	e := bin(bytecode.OpMulBy,
		bin(bytecode.OpMulBy, ref("a"), ref("b")),
		bin(bytecode.OpMulBy,
			bin(bytecode.OpMulBy, ref("c"), ref("d")),
			bin(bytecode.OpMulBy, ref("e"), ref("f"))))
	_, err := CompileInt(ctx, e)
	be.Err(t, err, ErrRegisterPressure)
}

func TestCompileIntUnary(t *testing.T) {
	ctx := newTestContext(t)

	res, err := CompileInt(ctx, &Unary{Op: bytecode.OpNeg, X: ref("x"), At: at})
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 1)
	be.Equal(t, res.Code[0].Op, bytecode.OpNeg)
	be.True(t, res.Code[0].Args[0].IsVar("I0.reg"))
	be.True(t, res.Code[0].Args[1].IsVar("x"))

	_, err = CompileInt(ctx, &Unary{Op: bytecode.OpAddBy, X: ref("x"), At: at})
	be.Err(t, err, ErrBadOperator)
}

func TestCompileIntTypeErrors(t *testing.T) {
	ctx := newTestContext(t)

	_, err := CompileInt(ctx, bin(bytecode.OpAddBy, ref("x"), ref("s")))
	be.Err(t, err, program.ErrTypeMismatch)

	_, err = CompileInt(ctx, &Str{Value: "hi", At: at})
	be.Err(t, err, program.ErrTypeMismatch)
}

func TestCompileIntUnknownNameDeferred(t *testing.T) {
	ctx := newTestContext(t)

	res, err := CompileInt(ctx, ref("later"))
	be.Err(t, err, nil)
	be.True(t, res.Value.IsVar("later"))
}

func TestCompileStrConcat(t *testing.T) {
	ctx := newTestContext(t)

	res, err := CompileStr(ctx, bin(bytecode.OpAddBy, &Str{Value: "hi ", At: at}, ref("s")))
	be.Err(t, err, nil)
	be.Equal(t, len(res.Code), 2)

	set, cat := res.Code[0], res.Code[1]
	be.Equal(t, set.Op, bytecode.OpSetVar)
	be.Equal(t, set.Flags, bytecode.FlagTypeStr)
	be.True(t, set.Args[0].IsVar("S0.reg"))
	be.True(t, set.Args[1].IsVar("S0.strlit"))

	be.Equal(t, cat.Op, bytecode.OpStrCat)
	be.True(t, cat.Args[1].IsVar("s"))
	be.Equal(t, res.Type, program.TypeStr)

	lit, ok := ctx.Variable("S0.strlit")
	be.True(t, ok)
	be.Equal(t, lit.Value.Str, "hi ")
}

func TestCompileStrRejectsArithmetic(t *testing.T) {
	ctx := newTestContext(t)

	_, err := CompileStr(ctx, bin(bytecode.OpSubBy, ref("s"), ref("t")))
	be.Err(t, err, program.ErrTypeMismatch)

	_, err = CompileStr(ctx, lit(3))
	be.Err(t, err, program.ErrTypeMismatch)

	_, err = CompileStr(ctx, ref("x"))
	be.Err(t, err, program.ErrTypeMismatch)
}

func TestRegisterPoolReusesLastReleased(t *testing.T) {
	p := newRegisterPool(program.IntRegisters)

	r0, err := p.alloc(at)
	be.Err(t, err, nil)
	r1, err := p.alloc(at)
	be.Err(t, err, nil)
	be.True(t, r0.IsVar("I0.reg"))
	be.True(t, r1.IsVar("I1.reg"))
	be.Equal(t, p.inUse(), 2)

	_, err = p.alloc(at)
	be.Err(t, err, ErrRegisterPressure)

	p.release(r1)
	p.release(r1)
	be.Equal(t, p.inUse(), 1)
	again, _ := p.alloc(at)
	be.True(t, again.IsVar("I1.reg"))

	p.release(bytecode.Var("x"))
	be.Equal(t, p.inUse(), 2)
}
