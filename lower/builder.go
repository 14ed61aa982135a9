package lower

import (
	"errors"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// ErrOutsideLoop is a break or continue with no enclosing loop.
var ErrOutsideLoop = errors.New("not inside a loop")

type loopFrame struct {
	start     *bytecode.Label
	breaks    []*bytecode.Instruction
	continues []*bytecode.Instruction
}

// Builder accumulates the code of one event. Labels marked with mark bind
// to whichever instruction is emitted next, or to the event's DONE when
// nothing follows.
type Builder struct {
	ctx     *program.Context
	code    []*bytecode.Instruction
	pending []*bytecode.Label
	loops   []*loopFrame
	labels  int
}

// NewBuilder returns an empty builder writing into ctx.
func NewBuilder(ctx *program.Context) *Builder {
	return &Builder{ctx: ctx}
}

// Len is the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.code) }

func (b *Builder) emit(code ...*bytecode.Instruction) {
	if len(code) == 0 {
		return
	}
	for _, l := range b.pending {
		l.Bind(code[0])
	}
	b.pending = b.pending[:0]
	b.code = append(b.code, code...)
}

func (b *Builder) newLabel(kind string) *bytecode.Label {
	b.labels++
	return bytecode.NewLabel(fmt.Sprintf("%s%d", kind, b.labels))
}

func (b *Builder) mark(l *bytecode.Label) {
	b.pending = append(b.pending, l)
}

// operand lowers e and emits its code, returning the operand that holds
// the value.
func (b *Builder) operand(e Expr) (bytecode.Operand, error) {
	res, err := CompileInt(b.ctx, e)
	if err != nil {
		return bytecode.None(), err
	}
	b.emit(res.Code...)
	return res.Value, nil
}

func (b *Builder) checkTarget(name string, want program.DataType, loc bytecode.SourceLocation) error {
	v, ok := b.ctx.Variable(name)
	if !ok {
		return program.Errorf(loc, program.ErrUndefined, "assignment to undeclared %s", name)
	}
	if v.Type != want {
		return program.Errorf(loc, program.ErrTypeMismatch, "%s is %s, assigned a %s", name, v.Type, want)
	}
	return nil
}

// AssignInt emits dst = e.
func (b *Builder) AssignInt(dst string, e Expr, loc bytecode.SourceLocation) error {
	if err := b.checkTarget(dst, program.TypeInt, loc); err != nil {
		return err
	}
	v, err := b.operand(e)
	if err != nil {
		return err
	}
	b.emit(bytecode.New(bytecode.OpSetVar, bytecode.FlagTypeInt, bytecode.Var(dst), v).At(loc))
	return nil
}

// AssignStr emits dst := e.
func (b *Builder) AssignStr(dst string, e Expr, loc bytecode.SourceLocation) error {
	if err := b.checkTarget(dst, program.TypeStr, loc); err != nil {
		return err
	}
	res, err := CompileStr(b.ctx, e)
	if err != nil {
		return err
	}
	b.emit(res.Code...)
	b.emit(bytecode.New(bytecode.OpSetVar, bytecode.FlagTypeStr, bytecode.Var(dst), res.Value).At(loc))
	return nil
}

// GoStage switches to another stage.
func (b *Builder) GoStage(stage string, loc bytecode.SourceLocation) {
	b.emit(bytecode.New(bytecode.OpGoStage, 0, bytecode.Ref(bytecode.KindStage, stage), bytecode.None()).At(loc))
}

// Play starts a background animation.
func (b *Builder) Play(anim string, loc bytecode.SourceLocation) {
	b.emit(bytecode.New(bytecode.OpPlay, 0, bytecode.Ref(bytecode.KindAnimation, anim), bytecode.Lit(0)).At(loc))
}

// Cue starts a light cue.
func (b *Builder) Cue(cue string, loc bytecode.SourceLocation) {
	b.emit(bytecode.New(bytecode.OpCue, 0, bytecode.Ref(bytecode.KindCue, cue), bytecode.None()).At(loc))
}

// Timer arms the stage timer with an interval in ticks.
func (b *Builder) Timer(interval Expr, loc bytecode.SourceLocation) error {
	return b.valueOp(bytecode.OpTimer, interval, loc)
}

// QCSet sets a quest flag.
func (b *Builder) QCSet(flag Expr, loc bytecode.SourceLocation) error {
	return b.valueOp(bytecode.OpQCSet, flag, loc)
}

// QCClr clears a quest flag.
func (b *Builder) QCClr(flag Expr, loc bytecode.SourceLocation) error {
	return b.valueOp(bytecode.OpQCClr, flag, loc)
}

func (b *Builder) valueOp(op bytecode.Opcode, e Expr, loc bytecode.SourceLocation) error {
	v, err := b.operand(e)
	if err != nil {
		return err
	}
	b.emit(bytecode.New(op, bytecode.FlagTypeInt, bytecode.None(), v).At(loc))
	return nil
}

// If emits a conditional. otherwise may be nil.
//
//	<cond>
//	GOTOIFN else, cond
//	<then>
//	GOTO end        ; only with an else branch
//	else: <otherwise>
//	end:
func (b *Builder) If(cond Expr, then, otherwise func() error, loc bytecode.SourceLocation) error {
	c, err := b.operand(cond)
	if err != nil {
		return err
	}
	elseL := b.newLabel("else")
	b.emit(bytecode.New(bytecode.OpGotoIfn, bytecode.FlagTypeInt, bytecode.Target(elseL), c).At(loc))

	if err := then(); err != nil {
		return err
	}
	if otherwise == nil {
		b.mark(elseL)
		return nil
	}

	endL := b.newLabel("endif")
	b.emit(bytecode.New(bytecode.OpGoto, 0, bytecode.Target(endL), bytecode.None()).At(loc))
	b.mark(elseL)
	if err := otherwise(); err != nil {
		return err
	}
	b.mark(endL)
	return nil
}

// Loop emits an unconditional loop around body. Break and Continue inside
// body jump past the loop and back to its start.
func (b *Builder) Loop(body func() error, loc bytecode.SourceLocation) error {
	frame := &loopFrame{start: b.newLabel("loop")}
	b.mark(frame.start)
	b.loops = append(b.loops, frame)

	err := body()
	b.loops = b.loops[:len(b.loops)-1]
	if err != nil {
		return err
	}

	b.emit(bytecode.New(bytecode.OpGoto, 0, bytecode.Target(frame.start), bytecode.None()).At(loc))
	end := b.newLabel("endloop")
	b.mark(end)

	for _, ins := range frame.breaks {
		ins.SetArg(0, bytecode.Target(end))
	}
	for _, ins := range frame.continues {
		ins.SetArg(0, bytecode.Target(frame.start))
	}
	return nil
}

// Break jumps past the innermost loop.
func (b *Builder) Break(loc bytecode.SourceLocation) error {
	frame, err := b.innermost("break", loc)
	if err != nil {
		return err
	}
	ins := bytecode.New(bytecode.OpGoto, 0, bytecode.None(), bytecode.None()).At(loc)
	frame.breaks = append(frame.breaks, ins)
	b.emit(ins)
	return nil
}

// Continue jumps to the start of the innermost loop.
func (b *Builder) Continue(loc bytecode.SourceLocation) error {
	frame, err := b.innermost("continue", loc)
	if err != nil {
		return err
	}
	ins := bytecode.New(bytecode.OpGoto, 0, bytecode.None(), bytecode.None()).At(loc)
	frame.continues = append(frame.continues, ins)
	b.emit(ins)
	return nil
}

func (b *Builder) innermost(what string, loc bytecode.SourceLocation) (*loopFrame, error) {
	if len(b.loops) == 0 {
		return nil, program.Errorf(loc, ErrOutsideLoop, "%s", what)
	}
	return b.loops[len(b.loops)-1], nil
}

// Finish wraps the accumulated code into an event ending in DONE and
// resets the builder.
func (b *Builder) Finish(stage string, t program.EventType, loc bytecode.SourceLocation) *program.Event {
	ev := program.NewEvent(stage, t, b.code, loc)
	for _, l := range b.pending {
		l.Bind(ev.Done())
	}
	b.code = nil
	b.pending = nil
	b.loops = nil
	return ev
}
