package bytecode

import (
	"encoding/binary"
	"errors"
	"testing"
)

// assemble lays raw instructions out from offset 0 of an image of the
// given size.
func assemble(size int, code ...RawInstruction) []byte {
	image := make([]byte, size)
	for i, ins := range code {
		copy(image[i*InstructionSize:], ins.Encode())
	}
	return image
}

func raw(op Opcode, flags OpFlags, a1, a2 uint32) RawInstruction {
	return RawInstruction{Op: op, Flags: flags, Arg1: a1, Arg2: a2}
}

func lit(v int32) uint32 { return uint32(v) }

func TestVMArithmetic(t *testing.T) {
	x := uint32(mustPointer(t, NSHeap, 0))
	image := assemble(64,
		raw(OpSetVar, FlagTypeInt|FlagLiteralArg2, x, lit(5)),
		raw(OpAddBy, FlagTypeInt|FlagLiteralArg2, x, lit(3)),
		raw(OpMulBy, FlagTypeInt|FlagLiteralArg2, x, lit(2)),
		raw(OpSubBy, FlagTypeInt|FlagLiteralArg2, x, lit(-4)),
		raw(OpDone, 0, 0, 0),
	)
	vm := NewVM(image)
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	if got, _ := vm.Int(Pointer(x)); got != 20 {
		t.Errorf("x = %d, want 20", got)
	}
}

func TestVMLoop(t *testing.T) {
	i := uint32(mustPointer(t, NSHeap, 0))
	tmp := uint32(mustPointer(t, NSHeap, 4))
	at := func(n int) uint32 { return uint32(mustPointer(t, NSCart, uint32(n*InstructionSize))) }

	image := assemble(80,
		raw(OpSetVar, FlagTypeInt|FlagLiteralArg2, i, lit(0)), // 0
		raw(OpAddBy, FlagTypeInt|FlagLiteralArg2, i, lit(1)),  // 1
		raw(OpSetVar, FlagTypeInt, tmp, i),                    // 2
		raw(OpLt, FlagTypeInt|FlagLiteralArg2, tmp, lit(10)),  // 3
		raw(OpGotoIfn, FlagTypeInt, at(6), tmp),               // 4
		raw(OpGoto, 0, at(1), 0),                              // 5
		raw(OpDone, 0, 0, 0),                                  // 6
	)
	var steps int
	vm := NewVM(image)
	vm.Trace = func(Pointer, RawInstruction) { steps++ }
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	if got, _ := vm.Int(Pointer(i)); got != 10 {
		t.Errorf("i = %d, want 10", got)
	}
	// SETVAR, nine full passes, a last pass that exits before its GOTO, DONE.
	if want := 1 + 9*5 + 4 + 1; steps != want {
		t.Errorf("executed %d instructions, want %d", steps, want)
	}
}

func TestVMEffectsStopAtGoStage(t *testing.T) {
	anim := uint32(mustPointer(t, NSCart, 0x200))
	stage := uint32(mustPointer(t, NSCart, 0x300))
	image := assemble(64,
		raw(OpPlay, FlagLiteralArg2, anim, lit(0)),
		raw(OpTimer, FlagTypeInt|FlagLiteralArg2, 0, lit(500)),
		raw(OpQCSet, FlagTypeInt|FlagLiteralArg2, 0, lit(3)),
		raw(OpGoStage, 0, stage, 0),
		raw(OpQCSet, FlagTypeInt|FlagLiteralArg2, 0, lit(4)),
		raw(OpDone, 0, 0, 0),
	)
	vm := NewVM(image)
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	want := []Effect{{OpPlay, anim}, {OpTimer, 500}, {OpQCSet, 3}, {OpGoStage, stage}}
	if len(vm.Effects) != len(want) {
		t.Fatalf("effects = %v, want %v", vm.Effects, want)
	}
	for i := range want {
		if vm.Effects[i] != want[i] {
			t.Errorf("effect %d = %v, want %v", i, vm.Effects[i], want[i])
		}
	}
	if !vm.QuestFlag(3) || vm.QuestFlag(4) {
		t.Error("quest flags wrong after GOSTAGE")
	}
	if got := vm.Effects[1].String(); got != "TIMER 500" {
		t.Errorf("effect string = %q", got)
	}
}

func TestVMQuestFlags(t *testing.T) {
	x := uint32(mustPointer(t, NSHeap, 0))
	image := assemble(64,
		raw(OpQCSet, FlagTypeInt|FlagLiteralArg2, 0, lit(7)),
		raw(OpQCClr, FlagTypeInt|FlagLiteralArg2, 0, lit(7)),
		raw(OpQCGet, FlagTypeInt|FlagLiteralArg2, x, lit(7)),
		raw(OpDone, 0, 0, 0),
	)
	vm := NewVM(image)
	vm.SetInt(Pointer(x), 99)
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	if got, _ := vm.Int(Pointer(x)); got != 0 {
		t.Errorf("QCGET of a cleared flag = %d", got)
	}
}

func TestVMStrings(t *testing.T) {
	s := uint32(mustPointer(t, NSHeap, 0))
	hi := mustPointer(t, NSCart, 100)
	there := mustPointer(t, NSCart, 100+StrSlot)
	image := assemble(160,
		raw(OpSetVar, FlagTypeStr, s, uint32(hi)),
		raw(OpStrCat, FlagTypeStr, s, uint32(there)),
		raw(OpStrCat, FlagTypeStr, s, uint32(there)),
		raw(OpDone, 0, 0, 0),
	)
	copy(image[hi.Offset():], "Hi ")
	copy(image[there.Offset():], "there")

	vm := NewVM(image)
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	got, err := vm.Str(Pointer(s))
	if err != nil {
		t.Fatal(err)
	}
	if want := "Hi therethere"; got != want {
		t.Errorf("s = %q, want %q", got, want)
	}
	if lit, _ := vm.Str(hi); lit != "Hi " {
		t.Errorf("image literal changed to %q", lit)
	}
}

func TestVMIntToStr(t *testing.T) {
	s := uint32(mustPointer(t, NSHeap, 0))
	n := uint32(mustPointer(t, NSHeap, 32))
	image := assemble(32,
		raw(OpSetVar, FlagTypeInt|FlagLiteralArg2, n, lit(-42)),
		raw(OpSetVar, FlagTypeInt|FlagTypeStr, s, n),
		raw(OpDone, 0, 0, 0),
	)
	vm := NewVM(image)
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	if got, _ := vm.Str(Pointer(s)); got != "-42" {
		t.Errorf("s = %q, want -42", got)
	}
}

func TestVMReadsImageData(t *testing.T) {
	x := uint32(mustPointer(t, NSHeap, 0))
	data := mustPointer(t, NSCart, 40)
	image := assemble(64,
		raw(OpSetVar, FlagTypeInt, x, uint32(data)),
		raw(OpNeg, FlagTypeInt, x, x),
		raw(OpDone, 0, 0, 0),
	)
	binary.LittleEndian.PutUint32(image[40:], uint32(0xFFFFFFF9)) // -7

	vm := NewVM(image)
	if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
		t.Fatal(err)
	}
	if got, _ := vm.Int(Pointer(x)); got != 7 {
		t.Errorf("x = %d, want 7", got)
	}
}

func TestVMComparisons(t *testing.T) {
	tests := []struct {
		op   Opcode
		a, b int32
		want int32
	}{
		{OpEq, 3, 3, 1},
		{OpNe, 3, 3, 0},
		{OpGt, 4, 3, 1},
		{OpLe, 4, 3, 0},
		{OpGe, 3, 3, 1},
		{OpAnd, 2, 0, 0},
		{OpOr, 0, 5, 1},
		{OpBwXor, 6, 3, 5},
		{OpBwShl, 1, 4, 16},
		{OpBwShr, -16, 2, -4},
		{OpModBy, 17, 5, 2},
		{OpDivBy, -9, 2, -4},
	}
	x := uint32(mustPointer(t, NSHeap, 0))
	for _, tt := range tests {
		image := assemble(32,
			raw(OpSetVar, FlagTypeInt|FlagLiteralArg2, x, lit(tt.a)),
			raw(tt.op, FlagTypeInt|FlagLiteralArg2, x, lit(tt.b)),
			raw(OpDone, 0, 0, 0),
		)
		vm := NewVM(image)
		if err := vm.Run(mustPointer(t, NSCart, 0)); err != nil {
			t.Errorf("%s: %v", tt.op, err)
			continue
		}
		if got, _ := vm.Int(Pointer(x)); got != tt.want {
			t.Errorf("%d %s %d = %d, want %d", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
}

func TestVMErrors(t *testing.T) {
	x := uint32(mustPointer(t, NSHeap, 0))
	self := uint32(mustPointer(t, NSCart, 0))
	tests := []struct {
		name  string
		image []byte
		entry uint32
		want  error
	}{
		{"divide by zero", assemble(32,
			raw(OpDivBy, FlagTypeInt|FlagLiteralArg2, x, lit(0))), 0, ErrDivideByZero},
		{"invalid opcode", assemble(32, raw(Opcode(0xEE), 0, 0, 0)), 0, ErrInvalidOpcode},
		{"runaway loop", assemble(32, raw(OpGoto, 0, self, 0)), 0, ErrStepLimit},
		{"outside image", assemble(32), 1000, ErrBadAddress},
		{"falls off the end", assemble(15, raw(OpNop, 0, 0, 0)), 0, ErrBadAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := NewVM(tt.image)
			vm.StepLimit = 50
			err := vm.Run(mustPointer(t, NSCart, tt.entry))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
