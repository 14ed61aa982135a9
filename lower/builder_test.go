package lower

import (
	"testing"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
	"github.com/nalgeon/be"
)

func noop() error { return nil }

func jumpTarget(t *testing.T, ins *bytecode.Instruction) *bytecode.Instruction {
	t.Helper()
	be.Equal(t, ins.Args[0].Kind, bytecode.OperandLabel)
	return ins.Args[0].Label.Target()
}

func TestAssignIntLowering(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	be.Err(t, b.AssignInt("x", bin(bytecode.OpAddBy, ref("y"), lit(1)), at), nil)
	ev := b.Finish("intro", program.EventEnter, at)

	be.Equal(t, len(ev.Code), 4)
	be.Equal(t, ev.Code[0].Op, bytecode.OpSetVar)
	be.Equal(t, ev.Code[1].Op, bytecode.OpAddBy)
	store := ev.Code[2]
	be.Equal(t, store.Op, bytecode.OpSetVar)
	be.True(t, store.Args[0].IsVar("x"))
	be.True(t, store.Args[1].IsVar("I0.reg"))
	be.Equal(t, ev.Code[3].Op, bytecode.OpDone)
}

func TestAssignTypeChecked(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	be.Err(t, b.AssignInt("s", lit(1), at), program.ErrTypeMismatch)
	be.Err(t, b.AssignStr("x", &Str{Value: "no", At: at}, at), program.ErrTypeMismatch)
	be.Err(t, b.AssignInt("ghost", lit(1), at), program.ErrUndefined)
	be.Equal(t, b.Len(), 0)
}

func TestAssignStrLiteral(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	be.Err(t, b.AssignStr("s", &Str{Value: "hello", At: at}, at), nil)
	be.Equal(t, b.Len(), 1)
	ev := b.Finish("intro", program.EventEnter, at)
	be.True(t, ev.Code[0].Args[1].IsVar("S0.strlit"))
	be.Equal(t, ev.Code[0].Flags, bytecode.FlagTypeStr)
}

func TestStatementOperands(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	b.GoStage("next", at)
	b.Play("intro_anim", at)
	b.Cue("flash", at)
	be.Err(t, b.Timer(lit(50), at), nil)
	be.Err(t, b.QCSet(lit(3), at), nil)
	be.Err(t, b.QCClr(ref("x"), at), nil)
	ev := b.Finish("intro", program.EventButtonA, at)

	gostage, play, cue, timer, qcset, qcclr := ev.Code[0], ev.Code[1], ev.Code[2], ev.Code[3], ev.Code[4], ev.Code[5]
	be.Equal(t, gostage.Args[0], bytecode.Ref(bytecode.KindStage, "next"))
	be.Equal(t, play.Args[0], bytecode.Ref(bytecode.KindAnimation, "intro_anim"))
	be.Equal(t, play.Args[1], bytecode.Lit(0))
	be.Equal(t, cue.Args[0], bytecode.Ref(bytecode.KindCue, "flash"))

	be.Equal(t, timer.Op, bytecode.OpTimer)
	be.Equal(t, timer.Args[0].Kind, bytecode.OperandNone)
	be.Equal(t, timer.Args[1].Value, int32(50))
	be.Equal(t, qcset.Op, bytecode.OpQCSet)
	be.True(t, qcclr.Args[1].IsVar("x"))
}

func TestIfWithoutElse(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	cond := bin(bytecode.OpGt, ref("x"), lit(3))
	err := b.If(cond, func() error {
		b.GoStage("win", at)
		return nil
	}, nil, at)
	be.Err(t, err, nil)
	ev := b.Finish("intro", program.EventEnter, at)

	// SETVAR, GT, GOTOIFN, GOSTAGE, DONE
	be.Equal(t, len(ev.Code), 5)
	branch := ev.Code[2]
	be.Equal(t, branch.Op, bytecode.OpGotoIfn)
	be.True(t, branch.Args[1].IsVar("I0.reg"))
	be.True(t, jumpTarget(t, branch) == ev.Done())
}

func TestIfElseLayout(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	err := b.If(ref("x"), func() error {
		b.GoStage("yes", at)
		return nil
	}, func() error {
		b.GoStage("no", at)
		return nil
	}, at)
	be.Err(t, err, nil)
	b.Play("anim", at)
	ev := b.Finish("intro", program.EventEnter, at)

	// GOTOIFN, GOSTAGE yes, GOTO end, GOSTAGE no, PLAY, DONE
	be.Equal(t, len(ev.Code), 6)
	be.True(t, ev.Code[0].Args[1].IsVar("x"))
	be.True(t, jumpTarget(t, ev.Code[0]) == ev.Code[3])
	be.Equal(t, ev.Code[2].Op, bytecode.OpGoto)
	be.True(t, jumpTarget(t, ev.Code[2]) == ev.Code[4])

	be.Err(t, ev.Place(bytecode.NSCart, 0x1000), nil)
	x, _ := ctx.Variable("x")
	be.Err(t, x.Place(bytecode.NSHeap, 0x40), nil)
	be.True(t, ev.Code[0].Resolve(ctx))
	raw := ev.Code[0].Raw()
	be.Equal(t, raw.Arg1, uint32(0x01001000+3*bytecode.InstructionSize))
}

func TestLoopBreakContinue(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	err := b.Loop(func() error {
		if err := b.AssignInt("x", bin(bytecode.OpAddBy, ref("x"), lit(1)), at); err != nil {
			return err
		}
		if err := b.If(bin(bytecode.OpGe, ref("x"), lit(10)), func() error {
			return b.Break(at)
		}, nil, at); err != nil {
			return err
		}
		return b.Continue(at)
	}, at)
	be.Err(t, err, nil)
	ev := b.Finish("intro", program.EventTimer, at)

	// 0 SETVAR I0<-x  1 ADDBY  2 SETVAR x<-I0
	// 3 SETVAR I0<-x  4 GE  5 GOTOIFN  6 GOTO(break)
	// 7 GOTO(continue)  8 GOTO(loop)  9 DONE
	be.Equal(t, len(ev.Code), 10)
	start := ev.Code[0]
	be.True(t, jumpTarget(t, ev.Code[5]) == ev.Code[7])
	be.True(t, jumpTarget(t, ev.Code[6]) == ev.Done())
	be.True(t, jumpTarget(t, ev.Code[7]) == start)
	be.True(t, jumpTarget(t, ev.Code[8]) == start)
}

func TestNestedLoopsBreakInnermost(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	err := b.Loop(func() error {
		if err := b.Loop(func() error { return b.Break(at) }, at); err != nil {
			return err
		}
		return b.Break(at)
	}, at)
	be.Err(t, err, nil)
	ev := b.Finish("intro", program.EventEnter, at)

	// 0 GOTO(inner break)  1 GOTO(inner loop)  2 GOTO(outer break)  3 GOTO(outer loop)  4 DONE
	be.Equal(t, len(ev.Code), 5)
	be.True(t, jumpTarget(t, ev.Code[0]) == ev.Code[2])
	be.True(t, jumpTarget(t, ev.Code[1]) == ev.Code[0])
	be.True(t, jumpTarget(t, ev.Code[2]) == ev.Done())
	be.True(t, jumpTarget(t, ev.Code[3]) == ev.Code[0])
}

func TestBreakOutsideLoop(t *testing.T) {
	b := NewBuilder(newTestContext(t))
	be.Err(t, b.Break(at), ErrOutsideLoop)
	be.Err(t, b.Continue(at), ErrOutsideLoop)
}

func TestFinishResets(t *testing.T) {
	ctx := newTestContext(t)
	b := NewBuilder(ctx)

	be.Err(t, b.If(ref("x"), noop, nil, at), nil)
	first := b.Finish("intro", program.EventEnter, at)
	be.True(t, jumpTarget(t, first.Code[0]) == first.Done())

	second := b.Finish("intro", program.EventButtonA, at)
	be.Equal(t, len(second.Code), 1)
	be.Equal(t, second.Code[0].Op, bytecode.OpDone)
}
