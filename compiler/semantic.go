package compiler

import (
	"fmt"

	"github.com/chazu/gqc/lower"
	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// ---------------------------------------------------------------------------
// Analyzer: declarations, then event bodies
// ---------------------------------------------------------------------------

var inputEvents = map[string]program.EventType{
	"A":  program.EventButtonA,
	"B":  program.EventButtonB,
	"<-": program.EventButtonL,
	"->": program.EventButtonR,
	"-":  program.EventButtonClick,
}

var namedEvents = map[string]program.EventType{
	"enter":  program.EventEnter,
	"bgdone": program.EventBgDone,
	"menu":   program.EventMenu,
	"timer":  program.EventTimer,
}

type analyzer struct {
	file     *File
	opts     Options
	ctx      *program.Context
	exprs    *exprBuilder
	warnings []Warning

	// event bodies collected while declaring stages
	events []pendingEvent
}

type pendingEvent struct {
	stage *program.Stage
	decl  *EventDecl
}

func newAnalyzer(f *File, opts Options) *analyzer {
	return &analyzer{
		file:  f,
		opts:  opts,
		ctx:   program.NewContext(),
		exprs: &exprBuilder{file: opts.Filename},
	}
}

func (a *analyzer) warn(loc bytecode.SourceLocation, format string, args ...any) {
	a.warnings = append(a.warnings, Warning{Loc: loc, Message: fmt.Sprintf(format, args...)})
}

// declare walks every section. Stages are declared last so that their
// options may name anything declared later in the file.
func (a *analyzer) declare() error {
	var stages []*StageDecl
	for _, sec := range a.file.Sections {
		var err error
		switch {
		case sec.Game != nil:
			err = a.declareGame(sec.Game)
		case sec.Vars != nil:
			err = a.declareVars(sec.Vars)
		case sec.Animations != nil:
			for _, d := range sec.Animations.Animations {
				if err = a.declareAnimation(d); err != nil {
					break
				}
			}
		case sec.Cues != nil:
			for _, d := range sec.Cues.Cues {
				if err = a.declareCue(d); err != nil {
					break
				}
			}
		case sec.Menus != nil:
			for _, d := range sec.Menus.Menus {
				if err = a.declareMenu(d); err != nil {
					break
				}
			}
		case sec.Stage != nil:
			stages = append(stages, sec.Stage)
		}
		if err != nil {
			return err
		}
	}
	for _, s := range stages {
		if err := a.declareStage(s); err != nil {
			return err
		}
	}
	if a.ctx.Game() == nil {
		return program.Errorf(location(a.opts.Filename, a.file.Pos), program.ErrUndefined, "no game block")
	}
	return nil
}

func (a *analyzer) declareGame(g *GameDecl) error {
	loc := location(a.opts.Filename, g.Pos)
	var (
		id                   int32
		title, author, start string
	)
	seen := make(map[string]bool)
	for _, s := range g.Settings {
		sloc := location(a.opts.Filename, s.Pos)
		if seen[s.Key] {
			return program.Errorf(sloc, program.ErrDuplicateDefinition, "game %s set twice", s.Key)
		}
		seen[s.Key] = true
		var err error
		switch s.Key {
		case "id":
			id, err = a.intSetting(s, 0, 0xFFFF)
		case "title":
			title, err = a.strSetting(s)
		case "author":
			author, err = a.strSetting(s)
		case "starting_stage":
			start, err = a.identSetting(s)
		default:
			err = program.Errorf(sloc, program.ErrInvalidValue, "unknown game setting %s", s.Key)
		}
		if err != nil {
			return err
		}
	}
	if !seen["id"] {
		return program.Errorf(loc, program.ErrInvalidValue, "game has no id")
	}
	if len(title) > program.MaxStrLen {
		a.warn(loc, "title %q truncated to %d characters", title, program.MaxStrLen)
	}
	_, err := a.ctx.DefineGame(uint16(id), title, author, start, loc)
	return err
}

func (a *analyzer) declareVars(sec *VarSection) error {
	storage := program.Volatile
	if sec.Storage == "persistent" {
		storage = program.Persistent
	}
	for _, d := range sec.Vars {
		loc := location(a.opts.Filename, d.Pos)
		var value program.Value
		switch {
		case d.Type == "int" && d.Assign == "=" && d.Int != nil:
			v, err := parseInt(*d.Int, d.Neg, loc)
			if err != nil {
				return err
			}
			value = program.IntValue(v)
		case d.Type == "str" && d.Assign == ":=" && d.Str != nil:
			value = program.StrValue(*d.Str)
		case d.Type == "int":
			return program.Errorf(loc, program.ErrTypeMismatch, "int %s must be initialized with `= <integer>`", d.Name)
		default:
			return program.Errorf(loc, program.ErrTypeMismatch, "str %s must be initialized with `:= <string>`", d.Name)
		}
		if _, err := a.ctx.Define(value.Type, d.Name, value, storage, loc); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) declareAnimation(d *AnimationDecl) error {
	loc := location(a.opts.Filename, d.Pos)
	opts := program.AnimationOptions{Source: d.Source}
	seen := make(map[string]bool)
	for _, s := range d.Options {
		if seen[s.Key] {
			return program.Errorf(location(a.opts.Filename, s.Pos), program.ErrDuplicateDefinition, "animation %s: %s set twice", d.Name, s.Key)
		}
		seen[s.Key] = true
		var (
			v   int32
			err error
		)
		switch s.Key {
		case "frame_rate":
			v, err = a.intSetting(s, 1, program.TicksPerSecond)
			opts.FrameRate = int(v)
		case "width":
			v, err = a.intSetting(s, 1, 0xFF)
			opts.Width = int(v)
		case "height":
			v, err = a.intSetting(s, 1, 0xFF)
			opts.Height = int(v)
		case "dithering":
			opts.Dithering, err = a.strSetting(s)
		default:
			err = program.Errorf(location(a.opts.Filename, s.Pos), program.ErrInvalidValue, "unknown animation option %s", s.Key)
		}
		if err != nil {
			return err
		}
	}
	opts = opts.WithDefaults()

	var frames []program.EncodedFrame
	if a.opts.Assets == nil {
		frames = []program.EncodedFrame{blankFrame(opts.Width, opts.Height)}
	} else {
		var err error
		frames, err = a.opts.Assets.Frames(opts)
		if err != nil {
			return program.Errorf(loc, program.ErrInvalidValue, "animation %s: %v", d.Name, err)
		}
	}
	_, err := a.ctx.DefineAnimation(d.Name, frames, opts, loc)
	return err
}

// blankFrame is an all-black uncompressed frame.
func blankFrame(w, h int) program.EncodedFrame {
	return program.EncodedFrame{
		Encoding: program.EncodingUncompressed,
		Width:    w,
		Height:   h,
		Data:     make([]byte, (w+7)/8*h),
	}
}

func (a *analyzer) declareCue(d *CueDecl) error {
	loc := location(a.opts.Filename, d.Pos)
	var specs []program.CueFrameSpec
	if a.opts.Assets == nil {
		specs = []program.CueFrameSpec{{Duration: 1}}
	} else {
		src, err := a.opts.Assets.CueSource(d.Source)
		if err != nil {
			return program.Errorf(loc, program.ErrInvalidValue, "lightcue %s: %v", d.Name, err)
		}
		cf, err := ParseCue(d.Source, src)
		if err != nil {
			return err
		}
		if specs, err = BuildCue(d.Source, cf); err != nil {
			return err
		}
	}
	_, err := a.ctx.DefineCue(d.Name, specs, loc)
	return err
}

func (a *analyzer) declareMenu(d *MenuDecl) error {
	loc := location(a.opts.Filename, d.Pos)
	options := make([]program.MenuOption, 0, len(d.Options))
	for _, o := range d.Options {
		v, err := parseInt(o.Value, o.Neg, location(a.opts.Filename, o.Pos))
		if err != nil {
			return err
		}
		options = append(options, program.MenuOption{Label: o.Label, Value: v})
	}
	_, err := a.ctx.DefineMenu(d.Name, options, loc)
	return err
}

func (a *analyzer) declareStage(d *StageDecl) error {
	loc := location(a.opts.Filename, d.Pos)
	stage, err := a.ctx.DefineStage(d.Name, loc)
	if err != nil {
		return err
	}
	events := make(map[program.EventType]*EventDecl)
	for _, o := range d.Options {
		oloc := location(a.opts.Filename, o.Pos)
		switch {
		case o.BgAnim != nil:
			if stage.Background != "" {
				return program.Errorf(oloc, program.ErrDuplicateDefinition, "stage %s already has bganim %s", d.Name, stage.Background)
			}
			stage.Background = *o.BgAnim
		case o.BgCue != nil:
			if stage.Cue != "" {
				return program.Errorf(oloc, program.ErrDuplicateDefinition, "stage %s already has bgcue %s", d.Name, stage.Cue)
			}
			stage.Cue = *o.BgCue
		case o.Menu != nil:
			prompt := ""
			if o.Menu.Prompt != nil {
				prompt = *o.Menu.Prompt
			}
			if err := stage.SetMenu(o.Menu.Name, prompt, oloc); err != nil {
				return err
			}
		case o.Event != nil:
			t := eventType(o.Event)
			if prev, ok := events[t]; ok {
				return program.Errorf(oloc, program.ErrDuplicateEvent, "stage %s already handles %s at %s",
					d.Name, t, location(a.opts.Filename, prev.Pos))
			}
			events[t] = o.Event
			a.events = append(a.events, pendingEvent{stage: stage, decl: o.Event})
		}
	}
	if stage.Menu != "" && events[program.EventMenu] == nil {
		a.warn(loc, "stage %s shows menu %s but has no menu event", d.Name, stage.Menu)
	}
	return nil
}

func eventType(e *EventDecl) program.EventType {
	if e.Input != nil {
		return inputEvents[*e.Input]
	}
	return namedEvents[*e.Name]
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func (a *analyzer) intSetting(s *Setting, min, max int32) (int32, error) {
	loc := location(a.opts.Filename, s.Pos)
	if s.Assign != "=" || s.Int == nil {
		return 0, program.Errorf(loc, program.ErrTypeMismatch, "%s wants `= <integer>`", s.Key)
	}
	v, err := parseInt(*s.Int, s.Neg, loc)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, program.Errorf(loc, program.ErrInvalidValue, "%s %d out of range %d..%d", s.Key, v, min, max)
	}
	return v, nil
}

func (a *analyzer) strSetting(s *Setting) (string, error) {
	if s.Assign != ":=" || s.Str == nil {
		return "", program.Errorf(location(a.opts.Filename, s.Pos), program.ErrTypeMismatch, "%s wants `:= <string>`", s.Key)
	}
	return *s.Str, nil
}

func (a *analyzer) identSetting(s *Setting) (string, error) {
	if s.Assign != "=" || s.Ident == nil {
		return "", program.Errorf(location(a.opts.Filename, s.Pos), program.ErrTypeMismatch, "%s wants `= <name>`", s.Key)
	}
	return *s.Ident, nil
}

// ---------------------------------------------------------------------------
// Event bodies
// ---------------------------------------------------------------------------

func (a *analyzer) lowerEvents() error {
	b := lower.NewBuilder(a.ctx)
	for _, pe := range a.events {
		if err := a.block(b, pe.decl.Body); err != nil {
			return err
		}
		t := eventType(pe.decl)
		ev := b.Finish(pe.stage.Name(), t, location(a.opts.Filename, pe.decl.Pos))
		if err := pe.stage.AddEvent(ev); err != nil {
			return err
		}
		log.Debugf("%s: %d instructions", ev.Name(), len(ev.Code))
	}
	return nil
}

func (a *analyzer) block(b *lower.Builder, blk *Block) error {
	for i, s := range blk.Stmts {
		if err := a.stmt(b, s); err != nil {
			return err
		}
		if terminates(s) && i+1 < len(blk.Stmts) {
			a.warn(location(a.opts.Filename, blk.Stmts[i+1].Pos), "unreachable code")
		}
	}
	return nil
}

// terminates reports whether control never falls through s.
func terminates(s *Stmt) bool {
	return s.Break || s.Continue || s.GoStage != nil
}

func (a *analyzer) stmt(b *lower.Builder, s *Stmt) error {
	loc := location(a.opts.Filename, s.Pos)
	switch {
	case s.If != nil:
		return a.ifStmt(b, s.If)

	case s.Loop != nil:
		return b.Loop(func() error { return a.block(b, s.Loop) }, loc)

	case s.Break:
		return b.Break(loc)

	case s.Continue:
		return b.Continue(loc)

	case s.Play != nil:
		b.Play(*s.Play, loc)

	case s.Cue != nil:
		b.Cue(*s.Cue, loc)

	case s.GoStage != nil:
		b.GoStage(*s.GoStage, loc)

	case s.Timer != nil:
		e, err := a.exprs.build(s.Timer)
		if err != nil {
			return err
		}
		return b.Timer(e, loc)

	case s.QCSet != nil:
		e, err := a.exprs.build(s.QCSet)
		if err != nil {
			return err
		}
		return b.QCSet(e, loc)

	case s.QCClr != nil:
		e, err := a.exprs.build(s.QCClr)
		if err != nil {
			return err
		}
		return b.QCClr(e, loc)

	case s.Assign != nil:
		e, err := a.exprs.build(s.Assign.Value)
		if err != nil {
			return err
		}
		if s.Assign.Op == ":=" {
			return b.AssignStr(s.Assign.Target, e, loc)
		}
		return b.AssignInt(s.Assign.Target, e, loc)
	}
	return nil
}

func (a *analyzer) ifStmt(b *lower.Builder, s *IfStmt) error {
	cond, err := a.exprs.build(s.Cond)
	if err != nil {
		return err
	}
	then := func() error { return a.block(b, s.Then) }
	var otherwise func() error
	switch {
	case s.Else == nil:
	case s.Else.If != nil:
		otherwise = func() error { return a.ifStmt(b, s.Else.If) }
	default:
		otherwise = func() error { return a.block(b, s.Else.Block) }
	}
	return b.If(cond, then, otherwise, location(a.opts.Filename, s.Pos))
}
