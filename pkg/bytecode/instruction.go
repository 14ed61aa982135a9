package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// InstructionSize is the fixed wire size of every instruction:
// opcode u8, flags u8, arg1 u32, arg2 u32.
const InstructionSize = 10

var (
	// ErrUnresolved is returned when bytes are requested before every
	// operand has an address.
	ErrUnresolved = errors.New("unresolved symbols remain")

	// ErrAlreadyPlaced is returned when a symbol is given a second address.
	ErrAlreadyPlaced = errors.New("symbol already placed")
)

// SymbolKind says which symbol table a named operand refers to.
type SymbolKind uint8

const (
	KindVariable SymbolKind = iota + 1
	KindStage
	KindAnimation
	KindCue
	KindMenu
)

func (k SymbolKind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindStage:
		return "stage"
	case KindAnimation:
		return "animation"
	case KindCue:
		return "lightcue"
	case KindMenu:
		return "menu"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Resolver maps symbol names to placed addresses.
type Resolver interface {
	Lookup(kind SymbolKind, name string) (Pointer, bool)
}

// SourceLocation is the script position an instruction was lowered from.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	switch {
	case l.Line == 0:
		return "<generated>"
	case l.File == "":
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// OperandKind tags the Operand union.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandLiteral
	OperandSymbol
	OperandLabel
)

// Operand is one instruction argument before linking.
type Operand struct {
	Kind  OperandKind
	Value int32      // OperandLiteral
	Ref   SymbolKind // OperandSymbol
	Name  string     // OperandSymbol
	Label *Label     // OperandLabel
}

// None is an unused argument slot; it encodes as zero.
func None() Operand { return Operand{} }

// Lit is an immediate integer.
func Lit(v int32) Operand { return Operand{Kind: OperandLiteral, Value: v} }

// Var refers to a variable by name.
func Var(name string) Operand { return Ref(KindVariable, name) }

// Ref refers to any named symbol.
func Ref(kind SymbolKind, name string) Operand {
	return Operand{Kind: OperandSymbol, Ref: kind, Name: name}
}

// Target refers to the instruction a label is bound to.
func Target(l *Label) Operand { return Operand{Kind: OperandLabel, Label: l} }

// IsLiteral reports whether the operand is an immediate.
func (o Operand) IsLiteral() bool { return o.Kind == OperandLiteral }

// IsVar reports whether the operand names the given variable.
func (o Operand) IsVar(name string) bool {
	return o.Kind == OperandSymbol && o.Ref == KindVariable && o.Name == name
}

func (o Operand) resolve(r Resolver) (uint32, bool) {
	switch o.Kind {
	case OperandNone:
		return 0, true
	case OperandLiteral:
		return uint32(o.Value), true
	case OperandSymbol:
		if r == nil {
			return 0, false
		}
		p, ok := r.Lookup(o.Ref, o.Name)
		if !ok || p.IsNull() {
			return 0, false
		}
		return uint32(p), true
	case OperandLabel:
		if o.Label == nil || o.Label.target == nil {
			return 0, false
		}
		addr := o.Label.target.Addr()
		if addr.IsNull() {
			return 0, false
		}
		return uint32(addr), true
	}
	return 0, false
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandNone:
		return "-"
	case OperandLiteral:
		return fmt.Sprintf("#%d", o.Value)
	case OperandSymbol:
		if o.Ref == KindVariable {
			return o.Name
		}
		return o.Ref.String() + ":" + o.Name
	case OperandLabel:
		return o.Label.String()
	}
	return "?"
}

// Label is a code position inside one event. It is bound to the
// instruction that ends up at that position and resolves to its address.
type Label struct {
	name   string
	target *Instruction
}

// NewLabel creates an unbound label.
func NewLabel(name string) *Label {
	return &Label{name: name}
}

// Bind attaches the label to an instruction. Binding twice is a bug in
// the caller.
func (l *Label) Bind(ins *Instruction) {
	if l.target != nil {
		panic(fmt.Sprintf("label %s bound twice", l.name))
	}
	l.target = ins
}

// Bound reports whether Bind has been called.
func (l *Label) Bound() bool { return l.target != nil }

// Target returns the bound instruction or nil.
func (l *Label) Target() *Instruction { return l.target }

func (l *Label) String() string {
	if l == nil {
		return "<nil label>"
	}
	if l.target != nil && !l.target.Addr().IsNull() {
		return l.target.Addr().String()
	}
	return "." + l.name
}

// Instruction is one firmware instruction. Operands stay symbolic until
// Resolve succeeds against a placed program.
type Instruction struct {
	Op    Opcode
	Flags OpFlags
	Args  [2]Operand
	Loc   SourceLocation

	addr       Pointer
	raw        [2]uint32
	resolved   bool
	unresolved []string
}

// New builds an instruction. Literal flags are derived from the operands;
// typeFlags carries FlagTypeInt and/or FlagTypeStr.
func New(op Opcode, typeFlags OpFlags, arg1, arg2 Operand) *Instruction {
	ins := &Instruction{Op: op, Args: [2]Operand{arg1, arg2}}
	ins.Flags = typeFlags &^ (FlagLiteralArg1 | FlagLiteralArg2)
	ins.syncFlags()
	return ins
}

func (i *Instruction) syncFlags() {
	i.Flags &^= FlagLiteralArg1 | FlagLiteralArg2
	if i.Args[0].IsLiteral() {
		i.Flags |= FlagLiteralArg1
	}
	if i.Args[1].IsLiteral() {
		i.Flags |= FlagLiteralArg2
	}
}

// SetArg replaces an operand and keeps the literal flags in step.
// Used to patch pending jumps.
func (i *Instruction) SetArg(n int, o Operand) {
	i.Args[n] = o
	i.syncFlags()
}

// At records the source position and returns i for chaining.
func (i *Instruction) At(loc SourceLocation) *Instruction {
	i.Loc = loc
	return i
}

// Name identifies the instruction in listings.
func (i *Instruction) Name() string { return i.Op.String() }

// Addr returns the placed address, or Null before placement.
func (i *Instruction) Addr() Pointer { return i.addr }

// Place assigns the instruction's address. It may be called once.
func (i *Instruction) Place(ns Namespace, offset uint32) error {
	if !i.addr.IsNull() {
		return fmt.Errorf("%w: %s at %s", ErrAlreadyPlaced, i.Op, i.addr)
	}
	p, err := MakePointer(ns, offset)
	if err != nil {
		return err
	}
	i.addr = p
	return nil
}

// Size is fixed regardless of operand state, so placement never has to
// wait for resolution.
func (i *Instruction) Size() int { return InstructionSize }

// Resolve tries to turn every operand into a raw value. It returns true
// once all operands are known; further calls are no-ops.
func (i *Instruction) Resolve(r Resolver) bool {
	if i.resolved {
		return true
	}
	var missing []string
	for n, arg := range i.Args {
		v, ok := arg.resolve(r)
		if !ok {
			missing = append(missing, arg.String())
			continue
		}
		i.raw[n] = v
	}
	i.unresolved = missing
	i.resolved = len(missing) == 0
	return i.resolved
}

// Resolved reports whether the last Resolve succeeded.
func (i *Instruction) Resolved() bool { return i.resolved }

// Unresolved lists the operands that failed the last Resolve.
func (i *Instruction) Unresolved() []string { return i.unresolved }

// Raw returns the resolved argument words.
func (i *Instruction) Raw() RawInstruction {
	return RawInstruction{Op: i.Op, Flags: i.Flags, Arg1: i.raw[0], Arg2: i.raw[1]}
}

// Bytes encodes the instruction. It fails until Resolve has succeeded.
func (i *Instruction) Bytes() ([]byte, error) {
	if !i.resolved {
		missing := i.unresolved
		if len(missing) == 0 {
			missing = []string{"(not resolved)"}
		}
		return nil, fmt.Errorf("%w: %s %s at %s", ErrUnresolved, i.Op, strings.Join(missing, ", "), i.Loc)
	}
	return i.Raw().Encode(), nil
}

func (i *Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(i.Op.String())
	info := GetOpcodeInfo(i.Op)
	if info.Arg1 != RoleUnused || info.Arg2 != RoleUnused {
		sb.WriteString(" ")
		sb.WriteString(i.Args[0].String())
		sb.WriteString(", ")
		sb.WriteString(i.Args[1].String())
	}
	return sb.String()
}

// RawInstruction is the decoded wire form.
type RawInstruction struct {
	Op    Opcode
	Flags OpFlags
	Arg1  uint32
	Arg2  uint32
}

// Encode writes the 10-byte little-endian form. Literal arguments are
// two's-complement int32, pointers are unsigned; both occupy one word.
func (r RawInstruction) Encode() []byte {
	buf := make([]byte, InstructionSize)
	buf[0] = byte(r.Op)
	buf[1] = byte(r.Flags)
	putArg(buf[2:6], r.Flags&FlagLiteralArg1 != 0, r.Arg1)
	putArg(buf[6:10], r.Flags&FlagLiteralArg2 != 0, r.Arg2)
	return buf
}

func putArg(b []byte, literal bool, v uint32) {
	if literal {
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return
	}
	binary.LittleEndian.PutUint32(b, v)
}

// DecodeInstruction reads one instruction from the start of b.
func DecodeInstruction(b []byte) (RawInstruction, error) {
	if len(b) < InstructionSize {
		return RawInstruction{}, fmt.Errorf("unexpected end of code: need %d bytes, have %d", InstructionSize, len(b))
	}
	return RawInstruction{
		Op:    Opcode(b[0]),
		Flags: OpFlags(b[1]),
		Arg1:  binary.LittleEndian.Uint32(b[2:6]),
		Arg2:  binary.LittleEndian.Uint32(b[6:10]),
	}, nil
}

// LiteralArg1 returns arg1 interpreted as a signed immediate.
func (r RawInstruction) LiteralArg1() int32 { return int32(r.Arg1) }

// LiteralArg2 returns arg2 interpreted as a signed immediate.
func (r RawInstruction) LiteralArg2() int32 { return int32(r.Arg2) }
