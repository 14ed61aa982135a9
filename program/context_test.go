package program

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/gqc/pkg/bytecode"
)

var loc = bytecode.SourceLocation{File: "game.gqc", Line: 4, Column: 1}

func TestNewContextReservesRegistersAndBuiltins(t *testing.T) {
	c := NewContext()

	for _, name := range append(append([]string{}, IntRegisters...), StrRegisters...) {
		v, ok := c.Variable(name)
		if !ok {
			t.Fatalf("register %s missing", name)
		}
		if v.Storage != Volatile {
			t.Errorf("%s storage = %s, want volatile", name, v.Storage)
		}
		if !IsRegister(name) {
			t.Errorf("IsRegister(%q) = false", name)
		}
	}

	v, ok := c.Variable("GQI_MENU_VALUE")
	if !ok {
		t.Fatal("GQI_MENU_VALUE missing")
	}
	if v.Addr().Namespace() != bytecode.NSBuiltinInt || v.Addr().Offset() != IntSize {
		t.Errorf("GQI_MENU_VALUE at %s, want BUILTIN_INT+4", v.Addr())
	}
	s, _ := c.Variable("GQS_TEXTMENU_RESULT")
	if s.Addr().Namespace() != bytecode.NSBuiltinStr {
		t.Errorf("GQS_TEXTMENU_RESULT at %s", s.Addr())
	}
}

func TestDefineDuplicate(t *testing.T) {
	c := NewContext()
	if _, err := c.Define(TypeInt, "score", IntValue(0), Persistent, loc); err != nil {
		t.Fatal(err)
	}
	_, err := c.Define(TypeStr, "score", StrValue(""), Volatile, loc)
	if !errors.Is(err, ErrDuplicateDefinition) {
		t.Errorf("err = %v, want ErrDuplicateDefinition", err)
	}
}

func TestDefineBuiltinRedefinition(t *testing.T) {
	c := NewContext()
	_, err := c.Define(TypeInt, "GQI_MENU_ACTIVE", IntValue(1), Volatile, loc)
	if !errors.Is(err, ErrBuiltinRedefinition) {
		t.Errorf("err = %v, want ErrBuiltinRedefinition", err)
	}
	if errors.Is(err, ErrDuplicateDefinition) {
		t.Error("builtin redefinition should be distinct from a plain duplicate")
	}
}

func TestDefineTypeMismatch(t *testing.T) {
	c := NewContext()
	_, err := c.Define(TypeInt, "x", StrValue("five"), Volatile, loc)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
	var perr *Error
	if !errors.As(err, &perr) || perr.Loc != loc {
		t.Errorf("error should carry the source location, got %v", err)
	}
}

func TestDefineRejectsLongStrings(t *testing.T) {
	c := NewContext()
	_, err := c.Define(TypeStr, "name", StrValue("this string is far too long"), Persistent, loc)
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
	if _, err := c.Define(TypeStr, "ok", StrValue("exactly twenty-one ch"), Persistent, loc); err != nil {
		t.Errorf("21 characters should fit: %v", err)
	}
}

func TestDefineRejectsInternalNames(t *testing.T) {
	c := NewContext()
	if _, err := c.Define(TypeInt, "a.b", IntValue(0), Volatile, loc); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("err = %v, want ErrInvalidValue", err)
	}
}

func TestPromoteVolatileStringCreatesShadow(t *testing.T) {
	c := NewContext()
	v, err := c.Define(TypeStr, "greeting", StrValue("hi"), StorageNone, loc)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Promote("greeting", Volatile); err != nil {
		t.Fatal(err)
	}
	if v.Shadow == nil {
		t.Fatal("volatile str should have a shadow")
	}
	if v.Shadow.Name() != "greeting.init" || v.Shadow.Storage != Persistent {
		t.Errorf("shadow = %s", v.Shadow)
	}
	if v.Shadow.Value.Str != "hi" {
		t.Errorf("shadow value = %q", v.Shadow.Value.Str)
	}

	if err := c.Promote("greeting", Persistent); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("second promote err = %v, want ErrInvalidValue", err)
	}
	if err := c.Promote("nope", Persistent); !errors.Is(err, ErrUndefined) {
		t.Errorf("promote undefined err = %v, want ErrUndefined", err)
	}
}

func TestPromoteFailureLeavesStorageUnset(t *testing.T) {
	c := NewContext()
	if _, err := c.DefineReserved(TypeInt, "greeting.init", IntValue(0), Persistent); err != nil {
		t.Fatal(err)
	}
	v, err := c.Define(TypeStr, "greeting", StrValue("hi"), StorageNone, loc)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Promote("greeting", Volatile); !errors.Is(err, ErrDuplicateDefinition) {
		t.Fatalf("err = %v, want ErrDuplicateDefinition", err)
	}
	if v.Storage != StorageNone || v.Shadow != nil {
		t.Errorf("after failed promote: storage %s, shadow %v", v.Storage, v.Shadow)
	}
	for _, vol := range c.Variables(Volatile) {
		if vol == v {
			t.Error("failed promote left the variable on the heap")
		}
	}
}

func TestVariablesByStorageKeepDefinitionOrder(t *testing.T) {
	c := NewContext()
	for _, name := range []string{"c", "a", "b"} {
		if _, err := c.Define(TypeInt, name, IntValue(0), Persistent, loc); err != nil {
			t.Fatal(err)
		}
	}
	var names []string
	for _, v := range c.Variables(Persistent) {
		if v.Type == TypeInt {
			names = append(names, v.Name())
		}
	}
	if len(names) != 3 || names[0] != "c" || names[1] != "a" || names[2] != "b" {
		t.Errorf("order = %v, want [c a b]", names)
	}
}

func TestStringLiteralInterning(t *testing.T) {
	c := NewContext()
	a, err := c.StringLiteral("hello", loc)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.StringLiteral("hello", loc)
	other, _ := c.StringLiteral("bye", loc)

	if a != b {
		t.Error("same literal should intern to one variable")
	}
	if a.Name() != "S0.strlit" || other.Name() != "S1.strlit" {
		t.Errorf("names = %s, %s", a.Name(), other.Name())
	}
	if a.Storage != Persistent {
		t.Errorf("literal storage = %s", a.Storage)
	}
}

func TestVariableBytes(t *testing.T) {
	c := NewContext()
	i, _ := c.Define(TypeInt, "n", IntValue(-2), Persistent, loc)
	s, _ := c.Define(TypeStr, "s", StrValue("ab"), Persistent, loc)

	ib, _ := i.Bytes()
	if !bytes.Equal(ib, []byte{0xFE, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("int bytes = % X", ib)
	}
	sb, _ := s.Bytes()
	if len(sb) != StrSize || sb[0] != 'a' || sb[1] != 'b' || sb[2] != 0 || sb[StrSize-1] != 0 {
		t.Errorf("str bytes = % X", sb)
	}
}

func TestInitInstruction(t *testing.T) {
	c := NewContext()
	n, _ := c.Define(TypeInt, "lives", IntValue(3), Volatile, loc)
	s, _ := c.Define(TypeStr, "msg", StrValue("go"), Volatile, loc)
	p, _ := c.Define(TypeInt, "best", IntValue(0), Persistent, loc)

	ins, err := n.InitInstruction()
	if err != nil {
		t.Fatal(err)
	}
	if ins.Op != bytecode.OpSetVar || !ins.Args[0].IsVar("lives") || ins.Args[1].Value != 3 {
		t.Errorf("int init = %s", ins)
	}
	if ins.Flags != bytecode.FlagTypeInt|bytecode.FlagLiteralArg2 {
		t.Errorf("int init flags = %s", ins.Flags)
	}

	ins, _ = s.InitInstruction()
	if !ins.Args[1].IsVar("msg.init") || ins.Flags != bytecode.FlagTypeStr {
		t.Errorf("str init = %s %s", ins, ins.Flags)
	}

	if _, err := p.InitInstruction(); err == nil {
		t.Error("persistent variables have no init instruction")
	}
}

func TestLookup(t *testing.T) {
	c := NewContext()
	v, _ := c.Define(TypeInt, "x", IntValue(0), Volatile, loc)

	if _, ok := c.Lookup(bytecode.KindVariable, "x"); ok {
		t.Error("unplaced variable should not resolve")
	}
	if err := v.Place(bytecode.NSHeap, 0x40); err != nil {
		t.Fatal(err)
	}
	p, ok := c.Lookup(bytecode.KindVariable, "x")
	if !ok || p.Offset() != 0x40 {
		t.Errorf("Lookup = %s, %v", p, ok)
	}
	if _, ok := c.Lookup(bytecode.KindStage, "x"); ok {
		t.Error("kinds must not be mixed up")
	}
}

func TestDefineGameOnce(t *testing.T) {
	c := NewContext()
	g, err := c.DefineGame(7, "A very long title that gets cut", "me", "intro", loc)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Title) != MaxStrLen {
		t.Errorf("title length = %d, want %d", len(g.Title), MaxStrLen)
	}
	if _, err := c.DefineGame(8, "again", "", "intro", loc); !errors.Is(err, ErrDuplicateDefinition) {
		t.Errorf("err = %v, want ErrDuplicateDefinition", err)
	}
	if _, err := NewContext().DefineGame(1, "t", "", "", loc); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("missing starting stage err = %v", err)
	}
}
