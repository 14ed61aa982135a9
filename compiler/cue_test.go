package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/gqc/assets"
	"github.com/chazu/gqc/program"
)

func buildCue(t *testing.T, src string) ([]program.CueFrameSpec, error) {
	t.Helper()
	cf, err := ParseCue("test.gqcue", []byte(src))
	if err != nil {
		t.Fatalf("ParseCue: %v", err)
	}
	return BuildCue("test.gqcue", cf)
}

func TestBuildCue(t *testing.T) {
	specs, err := buildCue(t, `
colors {
    warm := "#ffaa00";
    dim := "#111";
}
frame {
    duration = 0x20;
    colors { warm, dim, red, "#010203", "navy" }
}
frame {
    transition := "smooth";
    duration = 5;
    colors { dim, dim, dim, dim, dim }
}
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d frames, want 2", len(specs))
	}

	first := specs[0]
	if first.Duration != 32 || first.Transition != program.TransitionNone {
		t.Errorf("frame 0 = %+v", first)
	}
	want := [program.CueColorCount]program.Color{
		{R: 0xFF, G: 0xAA},
		{R: 0x11, G: 0x11, B: 0x11},
		{R: 0xFF},
		{R: 0x01, G: 0x02, B: 0x03},
		{B: 0x80},
	}
	if first.Colors != want {
		t.Errorf("frame 0 colors = %v, want %v", first.Colors, want)
	}
	if specs[1].Transition != program.TransitionSmooth || specs[1].Duration != 5 {
		t.Errorf("frame 1 = %+v", specs[1])
	}
}

func TestBuildCueTableShadowsNames(t *testing.T) {
	specs, err := buildCue(t, `
colors red := "#00ff00";
frame { duration = 1; colors { red, red, red, red, red } }
`)
	if err != nil {
		t.Fatal(err)
	}
	if got := specs[0].Colors[0]; got != (program.Color{G: 0xFF}) {
		t.Errorf("red = %v, want the table's green", got)
	}
}

func TestBuildCueErrors(t *testing.T) {
	const five = "colors { a, a, a, a, a }"
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"duplicate color", `colors { a := "red"; a := "blue"; } frame { duration = 1; ` + five + ` }`, program.ErrDuplicateDefinition},
		{"bad color value", `colors a := "blurple"; frame { duration = 1; ` + five + ` }`, assets.ErrInvalidColor},
		{"duplicate duration", `colors a := "red"; frame { duration = 1; duration = 2; ` + five + ` }`, ErrCueFrame},
		{"duplicate transition", `colors a := "red"; frame { duration = 1; transition := "none"; transition := "none"; ` + five + ` }`, ErrCueFrame},
		{"duplicate colors", `colors a := "red"; frame { duration = 1; ` + five + five + ` }`, ErrCueFrame},
		{"four colors", `colors a := "red"; frame { duration = 1; colors { a, a, a, a } }`, ErrCueFrame},
		{"unknown color", `colors a := "red"; frame { duration = 1; colors { a, a, b, a, a } }`, assets.ErrInvalidColor},
		{"missing duration", `colors a := "red"; frame { ` + five + ` }`, ErrCueFrame},
		{"missing colors", `colors a := "red"; frame { duration = 1; }`, ErrCueFrame},
		{"duration range", `colors a := "red"; frame { duration = 70000; ` + five + ` }`, ErrCueFrame},
		{"bad transition", `colors a := "red"; frame { duration = 1; transition := "wipe"; ` + five + ` }`, ErrCueFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildCue(t, tt.src)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var perr *program.Error
			if !errors.As(err, &perr) || perr.Loc.File != "test.gqcue" {
				t.Errorf("err = %v, want a located error", err)
			}
		})
	}
}

func TestCueSyntaxError(t *testing.T) {
	_, err := ParseCue("bad.gqcue", []byte(`frame { duration = 1; }`))
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("err = %v, want ErrSyntax", err)
	}
}
