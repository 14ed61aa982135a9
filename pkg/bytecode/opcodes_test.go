package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", op)
		}
	}
}

func TestOpcodeNumbering(t *testing.T) {
	// The interpreter's dispatch table is dense from 0x00.
	if OpcodeCount() != int(OpStrCat)+1 {
		t.Errorf("OpcodeCount() = %d, want %d", OpcodeCount(), int(OpStrCat)+1)
	}
	for op := OpNop; op <= OpStrCat; op++ {
		if !op.Valid() {
			t.Errorf("Opcode 0x%02X missing from table", byte(op))
		}
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "LOOP_NOP"},
		{OpDone, "DONE"},
		{OpGoStage, "GOSTAGE"},
		{OpSetVar, "SETVAR"},
		{OpGotoIfn, "GOTOIFN"},
		{OpModBy, "MODBY"},
		{OpBwShr, "BWSHR"},
		{OpQCGet, "QCGET"},
		{OpStrCat, "STRCAT"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	got := op.String()
	if !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if op.Valid() {
		t.Error("0xEE should not be valid")
	}
}

func TestOpcodeClasses(t *testing.T) {
	for _, op := range []Opcode{OpNot, OpNeg, OpBwNot, OpQCGet} {
		if !op.IsUnary() {
			t.Errorf("%s should be unary", op)
		}
		if op.IsAccumulator() {
			t.Errorf("%s should not accumulate", op)
		}
	}
	for _, op := range []Opcode{OpAddBy, OpSubBy, OpEq, OpLe, OpOr, OpBwShl, OpStrCat} {
		if !op.IsAccumulator() {
			t.Errorf("%s should accumulate", op)
		}
	}
	if !OpGoto.IsJump() || !OpGotoIfn.IsJump() {
		t.Error("GOTO and GOTOIFN are jumps")
	}
	if OpSetVar.IsJump() {
		t.Error("SETVAR is not a jump")
	}
}

func TestOpFlagsString(t *testing.T) {
	tests := []struct {
		flags OpFlags
		want  string
	}{
		{0, "-"},
		{FlagTypeInt, "INT"},
		{FlagTypeInt | FlagLiteralArg2, "INT|LIT2"},
		{FlagTypeInt | FlagTypeStr, "INT|STR"},
		{FlagLiteralArg1 | 0x40, "LIT1|0x40"},
	}
	for _, tt := range tests {
		if got := tt.flags.String(); got != tt.want {
			t.Errorf("OpFlags(0x%02X).String() = %q, want %q", byte(tt.flags), got, tt.want)
		}
	}
}
