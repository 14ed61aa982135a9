package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StrSlot is the width of a string slot: 21 characters and a NUL.
const StrSlot = 22

var (
	// ErrInvalidOpcode is returned for a byte the interpreter does not know.
	ErrInvalidOpcode = errors.New("invalid opcode")

	// ErrBadAddress is returned when code or data lies outside the image.
	ErrBadAddress = errors.New("address outside cartridge")

	// ErrStepLimit is returned when an event runs too long, usually an
	// unbroken loop.
	ErrStepLimit = errors.New("step limit exceeded")

	// ErrDivideByZero is returned by DIVBY and MODBY with a zero divisor.
	ErrDivideByZero = errors.New("division by zero")
)

// DefaultStepLimit bounds one Run.
const DefaultStepLimit = 100000

// Effect is a request an event makes of the firmware: a stage switch, an
// animation or cue, a timer or a quest flag change.
type Effect struct {
	Op  Opcode
	Arg uint32 // pointer for GOSTAGE/PLAY/CUE, value otherwise
}

func (e Effect) String() string {
	switch e.Op {
	case OpGoStage, OpPlay, OpCue:
		return fmt.Sprintf("%s %s", e.Op, Pointer(e.Arg))
	}
	return fmt.Sprintf("%s %d", e.Op, int32(e.Arg))
}

// VM runs event code out of a cartridge image the way the firmware does.
// Variables read from the image until written; writes land in an overlay
// so the image is never modified.
type VM struct {
	image []byte
	pc    Pointer

	ints  map[Pointer]int32
	strs  map[Pointer]string
	flags map[int32]bool

	// Effects collects everything the last Run asked the firmware to do.
	Effects []Effect

	// StepLimit caps the instructions one Run may execute.
	StepLimit int

	// Trace, when set, receives every executed instruction.
	Trace func(pc Pointer, ins RawInstruction)
}

// NewVM creates an interpreter over a cartridge image.
func NewVM(image []byte) *VM {
	return &VM{
		image:     image,
		ints:      make(map[Pointer]int32),
		strs:      make(map[Pointer]string),
		flags:     make(map[int32]bool),
		StepLimit: DefaultStepLimit,
	}
}

// Run executes from entry until DONE or GOSTAGE.
func (vm *VM) Run(entry Pointer) error {
	vm.pc = entry
	vm.Effects = vm.Effects[:0]

	for steps := 0; ; steps++ {
		if steps >= vm.StepLimit {
			return fmt.Errorf("%w at %s", ErrStepLimit, vm.pc)
		}
		ins, err := vm.fetch(vm.pc)
		if err != nil {
			return err
		}
		if vm.Trace != nil {
			vm.Trace(vm.pc, ins)
		}
		next, err := vm.pc.Add(InstructionSize)
		if err != nil {
			return err
		}

		switch op := ins.Op; op {
		case OpNop:

		case OpDone:
			return nil

		case OpGoStage:
			vm.Effects = append(vm.Effects, Effect{Op: op, Arg: ins.Arg1})
			return nil

		case OpPlay, OpCue:
			vm.Effects = append(vm.Effects, Effect{Op: op, Arg: ins.Arg1})

		case OpTimer:
			v, err := vm.operand(ins, 1)
			if err != nil {
				return err
			}
			vm.Effects = append(vm.Effects, Effect{Op: op, Arg: uint32(v)})

		case OpQCSet, OpQCClr:
			v, err := vm.operand(ins, 1)
			if err != nil {
				return err
			}
			vm.flags[v] = op == OpQCSet
			vm.Effects = append(vm.Effects, Effect{Op: op, Arg: uint32(v)})

		case OpSetVar:
			if ins.Flags&(FlagTypeInt|FlagTypeStr) == FlagTypeInt|FlagTypeStr {
				// Both type bits: format an int into a string slot.
				v, err := vm.operand(ins, 1)
				if err != nil {
					return err
				}
				vm.SetStr(Pointer(ins.Arg1), strconv.Itoa(int(v)))
				break
			}
			if ins.Flags&FlagTypeStr != 0 {
				s, err := vm.Str(Pointer(ins.Arg2))
				if err != nil {
					return err
				}
				vm.SetStr(Pointer(ins.Arg1), s)
				break
			}
			v, err := vm.operand(ins, 1)
			if err != nil {
				return err
			}
			vm.SetInt(Pointer(ins.Arg1), v)

		case OpStrCat:
			a, err := vm.Str(Pointer(ins.Arg1))
			if err != nil {
				return err
			}
			b, err := vm.Str(Pointer(ins.Arg2))
			if err != nil {
				return err
			}
			vm.SetStr(Pointer(ins.Arg1), a+b)

		case OpGoto:
			next = Pointer(ins.Arg1)

		case OpGotoIfn:
			v, err := vm.operand(ins, 1)
			if err != nil {
				return err
			}
			if v == 0 {
				next = Pointer(ins.Arg1)
			}

		default:
			if !op.Valid() {
				return fmt.Errorf("%w 0x%02X at %s", ErrInvalidOpcode, byte(op), vm.pc)
			}
			if err := vm.arith(ins); err != nil {
				return fmt.Errorf("%s at %s: %w", op, vm.pc, err)
			}
		}
		vm.pc = next
	}
}

// arith executes the accumulator and unary integer opcodes.
func (vm *VM) arith(ins RawInstruction) error {
	dst := Pointer(ins.Arg1)
	b, err := vm.operand(ins, 1)
	if err != nil {
		return err
	}

	if ins.Op.IsUnary() {
		var v int32
		switch ins.Op {
		case OpNot:
			v = boolInt(b == 0)
		case OpNeg:
			v = -b
		case OpBwNot:
			v = ^b
		case OpQCGet:
			v = boolInt(vm.flags[b])
		}
		vm.SetInt(dst, v)
		return nil
	}

	a, err := vm.Int(dst)
	if err != nil {
		return err
	}
	switch ins.Op {
	case OpAddBy:
		a += b
	case OpSubBy:
		a -= b
	case OpMulBy:
		a *= b
	case OpDivBy, OpModBy:
		if b == 0 {
			return ErrDivideByZero
		}
		if ins.Op == OpDivBy {
			a /= b
		} else {
			a %= b
		}
	case OpEq:
		a = boolInt(a == b)
	case OpNe:
		a = boolInt(a != b)
	case OpGt:
		a = boolInt(a > b)
	case OpLt:
		a = boolInt(a < b)
	case OpGe:
		a = boolInt(a >= b)
	case OpLe:
		a = boolInt(a <= b)
	case OpAnd:
		a = boolInt(a != 0 && b != 0)
	case OpOr:
		a = boolInt(a != 0 || b != 0)
	case OpBwAnd:
		a &= b
	case OpBwOr:
		a |= b
	case OpBwXor:
		a ^= b
	case OpBwShl:
		a <<= uint(b) & 31
	case OpBwShr:
		a >>= uint(b) & 31
	}
	vm.SetInt(dst, a)
	return nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// operand reads argument n as an integer: the immediate when its literal
// flag is set, else the variable it points at.
func (vm *VM) operand(ins RawInstruction, n int) (int32, error) {
	raw, lit := ins.Arg1, ins.Flags&FlagLiteralArg1 != 0
	if n == 1 {
		raw, lit = ins.Arg2, ins.Flags&FlagLiteralArg2 != 0
	}
	if lit {
		return int32(raw), nil
	}
	return vm.Int(Pointer(raw))
}

func (vm *VM) fetch(pc Pointer) (RawInstruction, error) {
	b, err := vm.cart(pc, InstructionSize)
	if err != nil {
		return RawInstruction{}, err
	}
	return DecodeInstruction(b)
}

// cart returns n image bytes at p, which must be a CART pointer.
func (vm *VM) cart(p Pointer, n int) ([]byte, error) {
	off := int(p.Offset())
	if p.Namespace() != NSCart || off+n > len(vm.image) {
		return nil, fmt.Errorf("%w: %s", ErrBadAddress, p)
	}
	return vm.image[off : off+n], nil
}

// Int reads an integer variable. Slots outside the image that were never
// written read as zero.
func (vm *VM) Int(p Pointer) (int32, error) {
	if v, ok := vm.ints[p]; ok {
		return v, nil
	}
	if p.Namespace() != NSCart {
		return 0, nil
	}
	b, err := vm.cart(p, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// SetInt writes an integer variable.
func (vm *VM) SetInt(p Pointer, v int32) { vm.ints[p] = v }

// Str reads a string variable or literal.
func (vm *VM) Str(p Pointer) (string, error) {
	if s, ok := vm.strs[p]; ok {
		return s, nil
	}
	if p.Namespace() != NSCart {
		return "", nil
	}
	b, err := vm.cart(p, StrSlot)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// SetStr writes a string variable, truncated to fit its slot.
func (vm *VM) SetStr(p Pointer, s string) {
	if len(s) > StrSlot-1 {
		s = s[:StrSlot-1]
	}
	vm.strs[p] = s
}

// QuestFlag reports whether QCSET has set flag n.
func (vm *VM) QuestFlag(n int32) bool { return vm.flags[n] }
