package program

import (
	"fmt"
	"strings"

	"github.com/chazu/gqc/pkg/bytecode"
)

// Register names. Expressions are evaluated through these volatile slots.
var (
	IntRegisters = []string{"I0.reg", "I1.reg"}
	StrRegisters = []string{"S0.reg", "S1.reg"}
)

// Builtin runtime slots owned by the firmware, by slot index.
var (
	BuiltinInts = []string{"GQI_MENU_ACTIVE", "GQI_MENU_VALUE"}
	BuiltinStrs = []string{"GQS_TEXTMENU_RESULT"}
)

const (
	shadowSuffix  = ".init"
	literalSuffix = ".strlit"
)

// Context owns every symbol of one compilation. Nothing is shared between
// contexts.
type Context struct {
	game *Game

	vars     map[string]*Variable
	varOrder []*Variable
	literals map[string]*Variable

	stages     map[string]*Stage
	stageOrder []*Stage
	anims      map[string]*Animation
	animOrder  []*Animation
	cues       map[string]*LightCue
	cueOrder   []*LightCue
	menus      map[string]*Menu
	menuOrder  []*Menu
}

// NewContext returns a context with registers and builtins declared.
func NewContext() *Context {
	c := &Context{
		vars:     make(map[string]*Variable),
		literals: make(map[string]*Variable),
		stages:   make(map[string]*Stage),
		anims:    make(map[string]*Animation),
		cues:     make(map[string]*LightCue),
		menus:    make(map[string]*Menu),
	}

	for _, name := range IntRegisters {
		c.mustReserve(TypeInt, name, IntValue(0), Volatile)
	}
	for _, name := range StrRegisters {
		c.mustReserve(TypeStr, name, StrValue(""), Volatile)
	}
	for slot, name := range BuiltinInts {
		v := c.mustReserve(TypeInt, name, IntValue(0), BuiltinInt)
		if err := v.Place(bytecode.NSBuiltinInt, uint32(slot*IntSize)); err != nil {
			panic(err)
		}
	}
	for slot, name := range BuiltinStrs {
		v := c.mustReserve(TypeStr, name, StrValue(""), BuiltinStr)
		if err := v.Place(bytecode.NSBuiltinStr, uint32(slot*StrSize)); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *Context) mustReserve(dt DataType, name string, value Value, storage StorageClass) *Variable {
	v, err := c.DefineReserved(dt, name, value, storage)
	if err != nil {
		panic(err)
	}
	return v
}

// ============================================================================
// Variables
// ============================================================================

// Define declares a script variable. storage may be StorageNone and
// assigned later with Promote.
func (c *Context) Define(dt DataType, name string, value Value, storage StorageClass, loc bytecode.SourceLocation) (*Variable, error) {
	if strings.Contains(name, ".") || name == "" {
		return nil, Errorf(loc, ErrInvalidValue, "%q is not a valid variable name", name)
	}
	if storage.IsBuiltin() {
		return nil, Errorf(loc, ErrInvalidValue, "storage class %s is reserved", storage)
	}
	v, err := c.define(dt, name, value, loc)
	if err != nil {
		return nil, err
	}
	if storage != StorageNone {
		if err := c.promote(v, storage); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// DefineReserved declares a compiler-internal variable. Internal names may
// contain dots and builtin storage classes are allowed.
func (c *Context) DefineReserved(dt DataType, name string, value Value, storage StorageClass) (*Variable, error) {
	v, err := c.define(dt, name, value, bytecode.SourceLocation{})
	if err != nil {
		return nil, err
	}
	if storage.IsBuiltin() {
		v.Storage = storage
		return v, nil
	}
	if err := c.promote(v, storage); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Context) define(dt DataType, name string, value Value, loc bytecode.SourceLocation) (*Variable, error) {
	if existing, ok := c.vars[name]; ok {
		if existing.Storage.IsBuiltin() {
			return nil, Errorf(loc, ErrBuiltinRedefinition, "%s", name)
		}
		return nil, Errorf(loc, ErrDuplicateDefinition, "variable %s already defined at %s", name, existing.Loc)
	}
	if value.Type != dt {
		return nil, Errorf(loc, ErrTypeMismatch, "cannot initialize %s %s with %s value %s", dt, name, value.Type, value)
	}
	if dt == TypeStr {
		if err := checkString(value.Str); err != nil {
			return nil, Errorf(loc, ErrInvalidValue, "%s: %v", name, err)
		}
	}

	v := &Variable{name: name, Type: dt, Value: value, Loc: loc}
	c.vars[name] = v
	c.varOrder = append(c.varOrder, v)
	return v, nil
}

// Promote assigns the storage class of a variable declared without one.
func (c *Context) Promote(name string, storage StorageClass) error {
	v, ok := c.vars[name]
	if !ok {
		return fmt.Errorf("%w: variable %s", ErrUndefined, name)
	}
	return c.promote(v, storage)
}

func (c *Context) promote(v *Variable, storage StorageClass) error {
	if storage != Persistent && storage != Volatile {
		return Errorf(v.Loc, ErrInvalidValue, "cannot promote %s to %s", v.name, storage)
	}
	if v.Storage != StorageNone {
		return Errorf(v.Loc, ErrInvalidValue, "%s is already %s", v.name, v.Storage)
	}
	if storage == Volatile && v.Type == TypeStr {
		shadow, err := c.define(TypeStr, v.name+shadowSuffix, v.Value, v.Loc)
		if err != nil {
			return err
		}
		shadow.Storage = Persistent
		v.Shadow = shadow
	}
	v.Storage = storage
	return nil
}

// Variable looks up a variable by name.
func (c *Context) Variable(name string) (*Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// Variables returns the variables of one storage class in definition order.
func (c *Context) Variables(storage StorageClass) []*Variable {
	var out []*Variable
	for _, v := range c.varOrder {
		if v.Storage == storage {
			out = append(out, v)
		}
	}
	return out
}

// AllVariables returns every variable in definition order.
func (c *Context) AllVariables() []*Variable {
	return c.varOrder
}

// StringLiteral interns a string constant used in code and returns the
// persistent variable that holds it.
func (c *Context) StringLiteral(s string, loc bytecode.SourceLocation) (*Variable, error) {
	if v, ok := c.literals[s]; ok {
		return v, nil
	}
	if err := checkString(s); err != nil {
		return nil, Errorf(loc, ErrInvalidValue, "string literal: %v", err)
	}
	name := fmt.Sprintf("S%d%s", len(c.literals), literalSuffix)
	v, err := c.define(TypeStr, name, StrValue(s), loc)
	if err != nil {
		return nil, err
	}
	v.Storage = Persistent
	c.literals[s] = v
	return v, nil
}

// IsRegister reports whether name is one of the expression registers.
func IsRegister(name string) bool {
	for _, r := range IntRegisters {
		if r == name {
			return true
		}
	}
	for _, r := range StrRegisters {
		if r == name {
			return true
		}
	}
	return false
}

func checkString(s string) error {
	if len(s) > MaxStrLen {
		return fmt.Errorf("%q is %d bytes, limit is %d", s, len(s), MaxStrLen)
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] > 0x7E {
			return fmt.Errorf("%q contains a non-printable byte at %d", s, i)
		}
	}
	return nil
}

// ============================================================================
// Resolution
// ============================================================================

// Lookup implements bytecode.Resolver over every table in the context.
func (c *Context) Lookup(kind bytecode.SymbolKind, name string) (bytecode.Pointer, bool) {
	var addr bytecode.Pointer
	switch kind {
	case bytecode.KindVariable:
		v, ok := c.vars[name]
		if !ok {
			return bytecode.Null, false
		}
		addr = v.Addr()
	case bytecode.KindStage:
		s, ok := c.stages[name]
		if !ok {
			return bytecode.Null, false
		}
		addr = s.Addr()
	case bytecode.KindAnimation:
		a, ok := c.anims[name]
		if !ok {
			return bytecode.Null, false
		}
		addr = a.Addr()
	case bytecode.KindCue:
		q, ok := c.cues[name]
		if !ok {
			return bytecode.Null, false
		}
		addr = q.Addr()
	case bytecode.KindMenu:
		m, ok := c.menus[name]
		if !ok {
			return bytecode.Null, false
		}
		addr = m.Addr()
	default:
		return bytecode.Null, false
	}
	return addr, !addr.IsNull()
}

// ============================================================================
// Game
// ============================================================================

// DefineGame declares the cartridge header. A program has exactly one.
func (c *Context) DefineGame(id uint16, title, author, startingStage string, loc bytecode.SourceLocation) (*Game, error) {
	if c.game != nil {
		return nil, Errorf(loc, ErrDuplicateDefinition, "game already defined at %s", c.game.Loc)
	}
	if startingStage == "" {
		return nil, Errorf(loc, ErrInvalidValue, "game has no starting_stage")
	}
	if len(title) > MaxStrLen {
		title = title[:MaxStrLen]
	}
	c.game = &Game{
		ID:            id,
		Title:         title,
		Author:        author,
		StartingStage: startingStage,
		Loc:           loc,
		ctx:           c,
	}
	return c.game, nil
}

// Game returns the header, or nil if none was declared.
func (c *Context) Game() *Game { return c.game }

// ============================================================================
// Stages
// ============================================================================

// DefineStage declares a stage. Ids follow definition order.
func (c *Context) DefineStage(name string, loc bytecode.SourceLocation) (*Stage, error) {
	if existing, ok := c.stages[name]; ok {
		return nil, Errorf(loc, ErrDuplicateDefinition, "stage %s already defined at %s", name, existing.Loc)
	}
	s := &Stage{
		name: name,
		ID:   uint16(len(c.stageOrder)),
		Loc:  loc,
		ctx:  c,
	}
	c.stages[name] = s
	c.stageOrder = append(c.stageOrder, s)
	return s, nil
}

// Stage looks up a stage by name.
func (c *Context) Stage(name string) (*Stage, bool) {
	s, ok := c.stages[name]
	return s, ok
}

// Stages returns stages in definition order.
func (c *Context) Stages() []*Stage { return c.stageOrder }

// ============================================================================
// Animations, cues, menus
// ============================================================================

// DefineAnimation declares an animation from already-encoded frames.
func (c *Context) DefineAnimation(name string, frames []EncodedFrame, opts AnimationOptions, loc bytecode.SourceLocation) (*Animation, error) {
	if existing, ok := c.anims[name]; ok {
		return nil, Errorf(loc, ErrDuplicateDefinition, "animation %s already defined at %s", name, existing.Loc)
	}
	a, err := newAnimation(name, uint16(len(c.animOrder)), frames, opts, loc)
	if err != nil {
		return nil, err
	}
	c.anims[name] = a
	c.animOrder = append(c.animOrder, a)
	return a, nil
}

// Animation looks up an animation by name.
func (c *Context) Animation(name string) (*Animation, bool) {
	a, ok := c.anims[name]
	return a, ok
}

// Animations returns animations in definition order.
func (c *Context) Animations() []*Animation { return c.animOrder }

// DefineCue declares a light cue.
func (c *Context) DefineCue(name string, frames []CueFrameSpec, loc bytecode.SourceLocation) (*LightCue, error) {
	if existing, ok := c.cues[name]; ok {
		return nil, Errorf(loc, ErrDuplicateDefinition, "lightcue %s already defined at %s", name, existing.Loc)
	}
	q, err := newLightCue(name, frames, loc)
	if err != nil {
		return nil, err
	}
	c.cues[name] = q
	c.cueOrder = append(c.cueOrder, q)
	return q, nil
}

// Cue looks up a light cue by name.
func (c *Context) Cue(name string) (*LightCue, bool) {
	q, ok := c.cues[name]
	return q, ok
}

// Cues returns light cues in definition order.
func (c *Context) Cues() []*LightCue { return c.cueOrder }

// DefineMenu declares a menu.
func (c *Context) DefineMenu(name string, options []MenuOption, loc bytecode.SourceLocation) (*Menu, error) {
	if existing, ok := c.menus[name]; ok {
		return nil, Errorf(loc, ErrDuplicateDefinition, "menu %s already defined at %s", name, existing.Loc)
	}
	m, err := newMenu(name, options, loc)
	if err != nil {
		return nil, err
	}
	c.menus[name] = m
	c.menuOrder = append(c.menuOrder, m)
	return m, nil
}

// Menu looks up a menu by name.
func (c *Context) Menu(name string) (*Menu, bool) {
	m, ok := c.menus[name]
	return m, ok
}

// Menus returns menus in definition order.
func (c *Context) Menus() []*Menu { return c.menuOrder }
