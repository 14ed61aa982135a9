package bytecode

import (
	"errors"
	"fmt"
)

// Namespace selects the address space a Pointer lives in.
type Namespace uint8

const (
	NSNull Namespace = 0x00
	NSCart Namespace = 0x01 // cartridge flash
	NSSave Namespace = 0x02 // save flash
	NSFram Namespace = 0x03
	NSFbuf Namespace = 0x04 // frame buffer
	NSHeap Namespace = 0x05 // volatile runtime heap

	NSBuiltin    Namespace = 0x80 // marker bit for firmware-owned slots
	NSBuiltinInt Namespace = NSBuiltin | 0x01
	NSBuiltinStr Namespace = NSBuiltin | 0x02
)

var namespaceNames = map[Namespace]string{
	NSNull:       "NULL",
	NSCart:       "CART",
	NSSave:       "SAVE",
	NSFram:       "FRAM",
	NSFbuf:       "FBUF",
	NSHeap:       "HEAP",
	NSBuiltinInt: "BUILTIN_INT",
	NSBuiltinStr: "BUILTIN_STR",
}

func (ns Namespace) String() string {
	if name, ok := namespaceNames[ns]; ok {
		return name
	}
	return fmt.Sprintf("NS(0x%02X)", byte(ns))
}

// IsBuiltin reports whether the namespace addresses firmware-owned slots.
func (ns Namespace) IsBuiltin() bool {
	return ns&NSBuiltin != 0
}

const (
	// PointerSize is the encoded size of a pointer in bytes.
	PointerSize = 4

	// OffsetBits is the width of the offset part of a pointer.
	OffsetBits = 24

	// MaxOffset is the largest representable offset in any namespace.
	MaxOffset = 1<<OffsetBits - 1
)

// ErrAddressSpace is returned when an offset does not fit in 24 bits.
var ErrAddressSpace = errors.New("address space exhausted")

// Pointer is a namespace tag in the high byte and a 24-bit offset.
type Pointer uint32

// Null is the zero pointer.
const Null Pointer = 0

// MakePointer combines a namespace and offset.
func MakePointer(ns Namespace, offset uint32) (Pointer, error) {
	if offset > MaxOffset {
		return Null, fmt.Errorf("%w: offset 0x%X in %s", ErrAddressSpace, offset, ns)
	}
	return Pointer(uint32(ns)<<OffsetBits | offset), nil
}

// Namespace returns the address space of p.
func (p Pointer) Namespace() Namespace {
	return Namespace(uint32(p) >> OffsetBits)
}

// Offset returns the position of p within its namespace.
func (p Pointer) Offset() uint32 {
	return uint32(p) & MaxOffset
}

// IsNull reports whether p points nowhere.
func (p Pointer) IsNull() bool {
	return p.Namespace() == NSNull
}

// Add returns p advanced by n bytes within the same namespace.
func (p Pointer) Add(n int) (Pointer, error) {
	return MakePointer(p.Namespace(), uint32(int64(p.Offset())+int64(n)))
}

func (p Pointer) String() string {
	return fmt.Sprintf("0x%08X", uint32(p))
}
