package program

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
)

// EventType is a stage trigger. The order is the slot order in the stage
// record and must match the firmware.
type EventType uint8

const (
	EventEnter EventType = iota
	EventButtonA
	EventButtonB
	EventButtonL
	EventButtonR
	EventButtonClick
	EventBgDone
	EventMenu
	EventTimer

	EventCount
)

var eventNames = [EventCount]string{
	"enter", "input(A)", "input(B)", "input(<-)", "input(->)", "input(-)", "bgdone", "menu", "timer",
}

func (e EventType) String() string {
	if e < EventCount {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// Event is the code run for one trigger. It always ends in DONE.
type Event struct {
	placement

	Type  EventType
	Stage string
	Code  []*bytecode.Instruction
	Loc   bytecode.SourceLocation
}

// NewEvent wraps lowered code and appends the DONE terminator.
func NewEvent(stage string, t EventType, code []*bytecode.Instruction, loc bytecode.SourceLocation) *Event {
	done := bytecode.New(bytecode.OpDone, 0, bytecode.None(), bytecode.None()).At(loc)
	return &Event{
		Type:  t,
		Stage: stage,
		Code:  append(code, done),
		Loc:   loc,
	}
}

// Done returns the terminating instruction.
func (e *Event) Done() *bytecode.Instruction {
	return e.Code[len(e.Code)-1]
}

func (e *Event) Name() string { return e.Stage + "." + e.Type.String() }

func (e *Event) Size() int { return len(e.Code) * bytecode.InstructionSize }

// Place assigns the event's address and lays its instructions out back to
// back from there.
func (e *Event) Place(ns bytecode.Namespace, offset uint32) error {
	if err := e.place(e.Name(), ns, offset); err != nil {
		return err
	}
	for _, ins := range e.Code {
		if err := ins.Place(ns, offset); err != nil {
			return err
		}
		offset += uint32(ins.Size())
	}
	return nil
}

// Bytes concatenates the encoded instructions.
func (e *Event) Bytes() ([]byte, error) {
	out := make([]byte, 0, e.Size())
	for _, ins := range e.Code {
		b, err := ins.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// StageRecordSize is the encoded size of a stage.
const StageRecordSize = 2 + 4*bytecode.PointerSize + int(EventCount)*bytecode.PointerSize

// Stage is a scene: background, optional menu and event handlers.
type Stage struct {
	placement

	name       string
	ID         uint16
	Loc        bytecode.SourceLocation
	Background string // animation name
	Cue        string // light cue name
	Menu       string
	Prompt     string // variable holding the menu prompt

	events [EventCount]*Event
	ctx    *Context

	ptrs       [4]bytecode.Pointer
	resolved   bool
	unresolved []string
}

func (s *Stage) Name() string { return s.name }

func (s *Stage) Size() int { return StageRecordSize }

func (s *Stage) Place(ns bytecode.Namespace, offset uint32) error {
	return s.place(s.name, ns, offset)
}

// SetMenu binds a menu and an optional prompt string to the stage.
func (s *Stage) SetMenu(menu, prompt string, loc bytecode.SourceLocation) error {
	if s.Menu != "" {
		return Errorf(loc, ErrDuplicateDefinition, "stage %s already has menu %s", s.name, s.Menu)
	}
	s.Menu = menu
	if prompt == "" {
		return nil
	}
	v, err := s.ctx.StringLiteral(prompt, loc)
	if err != nil {
		return err
	}
	s.Prompt = v.Name()
	return nil
}

// AddEvent attaches a handler. Each trigger may have one handler.
func (s *Stage) AddEvent(e *Event) error {
	if e.Type >= EventCount {
		return Errorf(e.Loc, ErrInvalidValue, "unknown event type %d", e.Type)
	}
	if prev := s.events[e.Type]; prev != nil {
		return Errorf(e.Loc, ErrDuplicateEvent, "stage %s already handles %s at %s", s.name, e.Type, prev.Loc)
	}
	e.Stage = s.name
	s.events[e.Type] = e
	return nil
}

// Event returns the handler for t, or nil.
func (s *Stage) Event(t EventType) *Event {
	if t >= EventCount {
		return nil
	}
	return s.events[t]
}

// Events returns the handlers in slot order, skipping empty slots.
func (s *Stage) Events() []*Event {
	var out []*Event
	for _, e := range s.events {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// Resolve looks up the stage's references. Optional references that were
// never set stay null.
func (s *Stage) Resolve(r bytecode.Resolver) bool {
	if s.resolved {
		return true
	}
	refs := []struct {
		kind bytecode.SymbolKind
		name string
	}{
		{bytecode.KindAnimation, s.Background},
		{bytecode.KindCue, s.Cue},
		{bytecode.KindMenu, s.Menu},
		{bytecode.KindVariable, s.Prompt},
	}

	var missing []string
	for i, ref := range refs {
		if ref.name == "" {
			s.ptrs[i] = bytecode.Null
			continue
		}
		p, ok := r.Lookup(ref.kind, ref.name)
		if !ok {
			missing = append(missing, ref.kind.String()+":"+ref.name)
			continue
		}
		s.ptrs[i] = p
	}
	for _, e := range s.events {
		if e != nil && e.Addr().IsNull() {
			missing = append(missing, "event:"+e.Name())
		}
	}
	s.unresolved = missing
	s.resolved = len(missing) == 0
	return s.resolved
}

// Unresolved lists the references that failed the last Resolve.
func (s *Stage) Unresolved() []string { return s.unresolved }

// Bytes encodes the stage record.
func (s *Stage) Bytes() ([]byte, error) {
	if !s.resolved {
		return nil, fmt.Errorf("%w: stage %s %v", bytecode.ErrUnresolved, s.name, s.unresolved)
	}
	buf := make([]byte, StageRecordSize)
	binary.LittleEndian.PutUint16(buf[0:], s.ID)
	off := 2
	for _, p := range s.ptrs {
		binary.LittleEndian.PutUint32(buf[off:], uint32(p))
		off += bytecode.PointerSize
	}
	for _, e := range s.events {
		var p bytecode.Pointer
		if e != nil {
			p = e.Addr()
		}
		binary.LittleEndian.PutUint32(buf[off:], uint32(p))
		off += bytecode.PointerSize
	}
	return buf, nil
}
