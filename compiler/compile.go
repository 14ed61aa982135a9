// Package compiler is the script front end. It parses .gqc sources with a
// participle grammar, declares every named object in a program.Context and
// lowers event bodies to instructions.
package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

var log = commonlog.GetLogger("gqc.compiler")

// Assets supplies the files a script refers to.
type Assets interface {
	// Frames loads and encodes the frames of an animation.
	Frames(opts program.AnimationOptions) ([]program.EncodedFrame, error)

	// CueSource returns the text of a .gqcue file.
	CueSource(path string) ([]byte, error)
}

// Options controls Compile.
type Options struct {
	// Filename is used in positions.
	Filename string

	// Assets loads animations and light cues. When nil every animation
	// gets one blank frame and every light cue one dark frame, which is
	// enough to check a script without touching the filesystem.
	Assets Assets
}

// Warning is a non-fatal finding.
type Warning struct {
	Loc     bytecode.SourceLocation
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Loc, w.Message)
}

// Result is a compiled but unlinked program.
type Result struct {
	File     *File
	Context  *program.Context
	Warnings []Warning
}

// Compile parses src and builds its program. Declarations are processed
// before any event body so that statements always see every variable.
func Compile(src []byte, opts Options) (*Result, error) {
	f, err := Parse(opts.Filename, src)
	if err != nil {
		return nil, err
	}
	return CompileFile(f, opts)
}

// CompileFile builds the program of an already parsed script.
func CompileFile(f *File, opts Options) (*Result, error) {
	a := newAnalyzer(f, opts)
	if err := a.declare(); err != nil {
		return nil, err
	}
	if err := a.lowerEvents(); err != nil {
		return nil, err
	}
	ctx := a.ctx
	log.Infof("compiled %s: %d stages, %d animations, %d cues, %d menus, %d variables",
		opts.Filename, len(ctx.Stages()), len(ctx.Animations()), len(ctx.Cues()), len(ctx.Menus()), len(ctx.AllVariables()))
	for _, w := range a.warnings {
		log.Warning(w.String())
	}
	return &Result{File: f, Context: ctx, Warnings: a.warnings}, nil
}
