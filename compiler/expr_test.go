package compiler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/alecthomas/participle"

	"github.com/chazu/gqc/lower"
	"github.com/chazu/gqc/program"
)

var exprParser = participle.MustBuild(&Expr{},
	participle.Lexer(gqLexer),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

// render prints a lowering tree in prefix form.
func render(e lower.Expr) string {
	switch n := e.(type) {
	case *lower.Int:
		return fmt.Sprint(n.Value)
	case *lower.Str:
		return fmt.Sprintf("%q", n.Value)
	case *lower.Ref:
		return n.Name
	case *lower.Unary:
		return fmt.Sprintf("(%s %s)", n.Op, render(n.X))
	case *lower.Binary:
		return fmt.Sprintf("(%s %s %s)", n.Op, render(n.L), render(n.R))
	}
	return "?"
}

func buildExpr(t *testing.T, src string) (lower.Expr, error) {
	t.Helper()
	e := &Expr{}
	if err := exprParser.ParseString(src, e); err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	b := &exprBuilder{file: "expr.gqc"}
	return b.build(e)
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(ADDBY 1 (MULBY 2 3))"},
		{"1 * 2 + 3", "(ADDBY (MULBY 1 2) 3)"},
		{"a - b - c", "(SUBBY (SUBBY a b) c)"},
		{"a < b == c > d", "(EQ (LT a b) (GT c d))"},
		{"a || b && c", "(OR a (AND b c))"},
		{"a & b | c ^ d", "(BWOR (BWAND a b) (BWXOR c d))"},
		{"1 << 2 + 3", "(BWSHL 1 (ADDBY 2 3))"},
		{"(1 + 2) * 3", "(MULBY (ADDBY 1 2) 3)"},
		{"x % 4 != 0 && !done", "(AND (NE (MODBY x 4) 0) (NOT done))"},
		{"-x + ~y", "(ADDBY (NEG x) (BWNOT y))"},
		{"qcget(flag + 1)", "(QCGET (ADDBY flag 1))"},
		{`"a" + name`, `(ADDBY "a" name)`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := buildExpr(t, tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if got := render(e); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIntegerLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want int32
	}{
		{"42", 42},
		{"-7", -7},
		{"0x10", 16},
		{"0xFFFFFFFF", -1},
		{"-2147483648", -2147483648},
		{"2147483647", 2147483647},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := buildExpr(t, tt.src)
			if err != nil {
				t.Fatal(err)
			}
			n, ok := e.(*lower.Int)
			if !ok {
				t.Fatalf("got %s, want a literal", render(e))
			}
			if n.Value != tt.want {
				t.Errorf("got %d, want %d", n.Value, tt.want)
			}
		})
	}

	for _, src := range []string{"2147483648", "-2147483649", "0x100000000"} {
		if _, err := buildExpr(t, src); !errors.Is(err, program.ErrInvalidValue) {
			t.Errorf("%s: err = %v, want ErrInvalidValue", src, err)
		}
	}
}

func TestExprLocations(t *testing.T) {
	e, err := buildExpr(t, "a +\n  b * c")
	if err != nil {
		t.Fatal(err)
	}
	add := e.(*lower.Binary)
	mul := add.R.(*lower.Binary)
	if add.At.Line != 1 || mul.At.Line != 2 || mul.At.Column != 5 {
		t.Errorf("add at %s, mul at %s", add.At, mul.At)
	}
	if !strings.HasPrefix(mul.At.String(), "expr.gqc:2:") {
		t.Errorf("location %s lacks file name", mul.At)
	}
	if ref := mul.L.(*lower.Ref); ref.At.Line != 2 || ref.At.Column != 3 {
		t.Errorf("b at %s", ref.At)
	}
}
