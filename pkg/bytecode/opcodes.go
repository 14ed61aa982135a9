package bytecode

import "fmt"

// Opcode represents a firmware instruction.
// Values are fixed by the cartridge interpreter and must not be renumbered.
type Opcode byte

const (
	// ========================================================================
	// Sequencing (0x00-0x06)
	// ========================================================================

	OpNop     Opcode = 0x00 // No operation; also used as a loop anchor
	OpDone    Opcode = 0x01 // End of event
	OpGoStage Opcode = 0x02 // Switch stage: GOSTAGE <stage>
	OpPlay    Opcode = 0x03 // Play background animation: PLAY <anim>
	OpCue     Opcode = 0x04 // Start a light cue: CUE <cue>
	OpSetVar  Opcode = 0x05 // Assign: SETVAR <dst> <src>
	OpGoto    Opcode = 0x06 // Jump: GOTO <target>

	// ========================================================================
	// Accumulating arithmetic (0x07-0x0B): a1 op= a2
	// ========================================================================

	OpAddBy Opcode = 0x07
	OpSubBy Opcode = 0x08
	OpMulBy Opcode = 0x09
	OpDivBy Opcode = 0x0A
	OpModBy Opcode = 0x0B

	// ========================================================================
	// Comparison and logic (0x0C-0x15): a1 = a1 op a2, unary a1 = op a2
	// ========================================================================

	OpEq  Opcode = 0x0C
	OpNe  Opcode = 0x0D
	OpGt  Opcode = 0x0E
	OpLt  Opcode = 0x0F
	OpGe  Opcode = 0x10
	OpLe  Opcode = 0x11
	OpAnd Opcode = 0x12
	OpOr  Opcode = 0x13
	OpNot Opcode = 0x14 // unary
	OpNeg Opcode = 0x15 // unary

	// ========================================================================
	// Control and timers (0x16-0x17)
	// ========================================================================

	OpGotoIfn Opcode = 0x16 // Jump if false: GOTOIFN <target> <cond>
	OpTimer   Opcode = 0x17 // Arm the stage timer: TIMER _ <interval>

	// ========================================================================
	// Bitwise (0x18-0x1D)
	// ========================================================================

	OpBwAnd Opcode = 0x18
	OpBwOr  Opcode = 0x19
	OpBwXor Opcode = 0x1A
	OpBwNot Opcode = 0x1B // unary
	OpBwShl Opcode = 0x1C
	OpBwShr Opcode = 0x1D

	// ========================================================================
	// Quest flags and strings (0x1E-0x21)
	// ========================================================================

	OpQCGet  Opcode = 0x1E // unary: a1 = flag a2 set
	OpQCSet  Opcode = 0x1F // set flag: QCSET _ <flag>
	OpQCClr  Opcode = 0x20 // clear flag: QCCLR _ <flag>
	OpStrCat Opcode = 0x21 // a1 += a2 (strings)
)

// OperandRole describes how the interpreter reads one argument slot.
type OperandRole uint8

const (
	RoleUnused OperandRole = iota
	RoleRead
	RoleWrite
	RoleReadWrite
	RoleTarget
)

// OpcodeInfo provides metadata about each opcode for listing and validation.
type OpcodeInfo struct {
	Name string
	Arg1 OperandRole
	Arg2 OperandRole
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:     {"LOOP_NOP", RoleUnused, RoleUnused},
	OpDone:    {"DONE", RoleUnused, RoleUnused},
	OpGoStage: {"GOSTAGE", RoleRead, RoleUnused},
	OpPlay:    {"PLAY", RoleRead, RoleRead},
	OpCue:     {"CUE", RoleRead, RoleUnused},
	OpSetVar:  {"SETVAR", RoleWrite, RoleRead},
	OpGoto:    {"GOTO", RoleTarget, RoleUnused},

	OpAddBy: {"ADDBY", RoleReadWrite, RoleRead},
	OpSubBy: {"SUBBY", RoleReadWrite, RoleRead},
	OpMulBy: {"MULBY", RoleReadWrite, RoleRead},
	OpDivBy: {"DIVBY", RoleReadWrite, RoleRead},
	OpModBy: {"MODBY", RoleReadWrite, RoleRead},

	OpEq:  {"EQ", RoleReadWrite, RoleRead},
	OpNe:  {"NE", RoleReadWrite, RoleRead},
	OpGt:  {"GT", RoleReadWrite, RoleRead},
	OpLt:  {"LT", RoleReadWrite, RoleRead},
	OpGe:  {"GE", RoleReadWrite, RoleRead},
	OpLe:  {"LE", RoleReadWrite, RoleRead},
	OpAnd: {"AND", RoleReadWrite, RoleRead},
	OpOr:  {"OR", RoleReadWrite, RoleRead},
	OpNot: {"NOT", RoleWrite, RoleRead},
	OpNeg: {"NEG", RoleWrite, RoleRead},

	OpGotoIfn: {"GOTOIFN", RoleTarget, RoleRead},
	OpTimer:   {"TIMER", RoleUnused, RoleRead},

	OpBwAnd: {"BWAND", RoleReadWrite, RoleRead},
	OpBwOr:  {"BWOR", RoleReadWrite, RoleRead},
	OpBwXor: {"BWXOR", RoleReadWrite, RoleRead},
	OpBwNot: {"BWNOT", RoleWrite, RoleRead},
	OpBwShl: {"BWSHL", RoleReadWrite, RoleRead},
	OpBwShr: {"BWSHR", RoleReadWrite, RoleRead},

	OpQCGet:  {"QCGET", RoleWrite, RoleRead},
	OpQCSet:  {"QCSET", RoleUnused, RoleRead},
	OpQCClr:  {"QCCLR", RoleUnused, RoleRead},
	OpStrCat: {"STRCAT", RoleReadWrite, RoleRead},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether the interpreter knows this opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true if arg1 of this opcode is a code address.
func (op Opcode) IsJump() bool {
	return op == OpGoto || op == OpGotoIfn
}

// IsUnary returns true for opcodes that write op(a2) into a1.
func (op Opcode) IsUnary() bool {
	switch op {
	case OpNot, OpNeg, OpBwNot, OpQCGet:
		return true
	}
	return false
}

// IsAccumulator returns true for binary opcodes of the form a1 = a1 op a2.
func (op Opcode) IsAccumulator() bool {
	info, ok := opcodeInfoTable[op]
	return ok && info.Arg1 == RoleReadWrite
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// OpFlags is the flag byte that follows the opcode.
type OpFlags uint8

const (
	FlagTypeInt     OpFlags = 0x01
	FlagTypeStr     OpFlags = 0x02
	FlagLiteralArg1 OpFlags = 0x04
	FlagLiteralArg2 OpFlags = 0x08
)

// String renders the flag set the way listings show it, e.g. "INT|LIT2".
func (f OpFlags) String() string {
	if f == 0 {
		return "-"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&FlagTypeInt != 0 {
		add("INT")
	}
	if f&FlagTypeStr != 0 {
		add("STR")
	}
	if f&FlagLiteralArg1 != 0 {
		add("LIT1")
	}
	if f&FlagLiteralArg2 != 0 {
		add("LIT2")
	}
	if rest := f &^ (FlagTypeInt | FlagTypeStr | FlagLiteralArg1 | FlagLiteralArg2); rest != 0 {
		add(fmt.Sprintf("0x%02X", byte(rest)))
	}
	return s
}
