// Package bytecode describes the instruction set executed by the GameQueer
// cartridge interpreter and the addressing model it runs on.
//
// # Addressing
//
// Every reference on the device is a 32-bit Pointer: the high byte selects a
// namespace (cartridge flash, save flash, heap, builtin slots, ...) and the
// low 24 bits are a byte offset inside it. A pointer whose namespace is NULL
// points nowhere.
//
// # Instructions
//
// Instructions are fixed-size 10-byte records:
//
//	u8  opcode
//	u8  flags      TYPE_INT, TYPE_STR, LITERAL_ARG1, LITERAL_ARG2
//	u32 arg1       little-endian pointer or signed literal
//	u32 arg2
//
// Arithmetic and comparison opcodes accumulate into arg1 (a1 = a1 op a2);
// unary opcodes write op(a2) into a1. GOTO and GOTOIFN take the jump target
// in arg1, and GOTOIFN reads its condition from arg2.
//
// An Instruction is built with symbolic operands (variable names, stage
// names, labels). Once the linker has placed every symbol, Resolve converts
// them to raw words; Bytes refuses to encode an unresolved instruction.
//
// # Checksums
//
// CRC16 implements the table-free CCITT variant the firmware uses to
// validate the persistent section and the cartridge header.
package bytecode
