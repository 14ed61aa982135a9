package program

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/chazu/gqc/pkg/bytecode"
)

const (
	IntSize   = 4
	StrSize   = bytecode.StrSlot
	MaxStrLen = StrSize - 1
)

// DataType is the type of a variable or expression.
type DataType uint8

const (
	TypeInt DataType = iota + 1
	TypeStr
)

func (d DataType) String() string {
	switch d {
	case TypeInt:
		return "int"
	case TypeStr:
		return "str"
	}
	return "invalid"
}

// Size is the storage size of a value of this type.
func (d DataType) Size() int {
	if d == TypeStr {
		return StrSize
	}
	return IntSize
}

// Flag is the instruction type flag for this type.
func (d DataType) Flag() bytecode.OpFlags {
	if d == TypeStr {
		return bytecode.FlagTypeStr
	}
	return bytecode.FlagTypeInt
}

// StorageClass decides where a variable lives.
type StorageClass uint8

const (
	StorageNone StorageClass = iota
	Persistent
	Volatile
	BuiltinInt
	BuiltinStr
)

func (s StorageClass) String() string {
	switch s {
	case Persistent:
		return "persistent"
	case Volatile:
		return "volatile"
	case BuiltinInt:
		return "builtin_int"
	case BuiltinStr:
		return "builtin_str"
	}
	return "unassigned"
}

// IsBuiltin reports whether the firmware owns the storage.
func (s StorageClass) IsBuiltin() bool {
	return s == BuiltinInt || s == BuiltinStr
}

// Value is a typed initial value.
type Value struct {
	Type DataType
	Int  int32
	Str  string
}

func IntValue(v int32) Value  { return Value{Type: TypeInt, Int: v} }
func StrValue(s string) Value { return Value{Type: TypeStr, Str: s} }

func (v Value) String() string {
	if v.Type == TypeStr {
		return strconv.Quote(v.Str)
	}
	return strconv.Itoa(int(v.Int))
}

// Variable is a named int or str slot.
type Variable struct {
	placement

	name    string
	Type    DataType
	Storage StorageClass
	Value   Value
	Loc     bytecode.SourceLocation

	// Shadow holds the initial value of a volatile str; the init code copies
	// it into the heap at startup.
	Shadow *Variable
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Size() int { return v.Type.Size() }

// Place assigns the variable's address once.
func (v *Variable) Place(ns bytecode.Namespace, offset uint32) error {
	return v.place(v.name, ns, offset)
}

// Bytes is the initial value as stored in flash.
func (v *Variable) Bytes() ([]byte, error) {
	switch v.Type {
	case TypeInt:
		buf := make([]byte, IntSize)
		binary.LittleEndian.PutUint32(buf, uint32(v.Value.Int))
		return buf, nil
	case TypeStr:
		return fixedString(v.Value.Str), nil
	}
	return nil, fmt.Errorf("variable %s has no type", v.name)
}

// InitInstruction is the startup assignment for a volatile variable.
func (v *Variable) InitInstruction() (*bytecode.Instruction, error) {
	if v.Storage != Volatile {
		return nil, fmt.Errorf("%w: %s is %s, not volatile", ErrInvalidValue, v.name, v.Storage)
	}
	if v.Type == TypeStr {
		if v.Shadow == nil {
			return nil, fmt.Errorf("%w: volatile str %s has no initializer", ErrUndefined, v.name)
		}
		return bytecode.New(bytecode.OpSetVar, bytecode.FlagTypeStr, bytecode.Var(v.name), bytecode.Var(v.Shadow.name)), nil
	}
	return bytecode.New(bytecode.OpSetVar, bytecode.FlagTypeInt, bytecode.Var(v.name), bytecode.Lit(v.Value.Int)), nil
}

func (v *Variable) String() string {
	return fmt.Sprintf("%s %s %s = %s", v.Storage, v.Type, v.name, v.Value)
}

// fixedString is the firmware's NUL-padded string slot.
func fixedString(s string) []byte {
	buf := make([]byte, StrSize)
	copy(buf[:MaxStrLen], s)
	return buf
}
