package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of lowered instructions.
// Placed instructions show their address; unplaced ones show their index.
func Disassemble(code []*Instruction) string {
	return DisassembleWithName("", code)
}

// DisassembleWithName returns a listing with a name header.
func DisassembleWithName(name string, code []*Instruction) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	for idx, ins := range code {
		sb.WriteString(DisassembleInstruction(idx, ins))
		sb.WriteString("\n")
	}
	return sb.String()
}

// DisassembleInstruction formats a single instruction. The raw words are
// shown when the instruction has been resolved.
func DisassembleInstruction(idx int, ins *Instruction) string {
	where := fmt.Sprintf("%04d", idx)
	if !ins.Addr().IsNull() {
		where = ins.Addr().String()
	}

	line := fmt.Sprintf("%s  %-8s %-9s %s", where, ins.Op, ins.Flags, ins.symbolicArgs())
	if ins.Resolved() {
		raw := ins.Raw()
		line = fmt.Sprintf("%-60s ; %08X %08X", line, raw.Arg1, raw.Arg2)
	}
	if ins.Loc.Line > 0 {
		line += fmt.Sprintf(" ; line %d:%d", ins.Loc.Line, ins.Loc.Column)
	}
	return line
}

func (i *Instruction) symbolicArgs() string {
	info := GetOpcodeInfo(i.Op)
	var parts []string
	if info.Arg1 != RoleUnused || i.Args[0].Kind != OperandNone {
		parts = append(parts, i.Args[0].String())
	}
	if info.Arg2 != RoleUnused || i.Args[1].Kind != OperandNone {
		if len(parts) == 0 {
			parts = append(parts, "-")
		}
		parts = append(parts, i.Args[1].String())
	}
	return strings.Join(parts, ", ")
}

// DisassembleBytes decodes a run of encoded instructions starting at base.
func DisassembleBytes(code []byte, base Pointer) (string, error) {
	if len(code)%InstructionSize != 0 {
		return "", fmt.Errorf("code length %d is not a multiple of %d", len(code), InstructionSize)
	}

	var sb strings.Builder
	for off := 0; off < len(code); off += InstructionSize {
		raw, err := DecodeInstruction(code[off:])
		if err != nil {
			return "", err
		}
		addr, err := base.Add(off)
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf("%s  %s\n", addr, raw))
	}
	return sb.String(), nil
}

func (r RawInstruction) String() string {
	return fmt.Sprintf("%-8s %-9s %s, %s", r.Op, r.Flags,
		formatWord(r.Arg1, r.Flags&FlagLiteralArg1 != 0),
		formatWord(r.Arg2, r.Flags&FlagLiteralArg2 != 0))
}

func formatWord(v uint32, literal bool) string {
	if literal {
		return fmt.Sprintf("#%d", int32(v))
	}
	return Pointer(v).String()
}
