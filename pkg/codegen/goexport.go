package codegen

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/gqc/linker"
	"github.com/chazu/gqc/pkg/bytecode"
)

// ErrInvalidExport is returned when the generated Go does not type-check.
var ErrInvalidExport = errors.New("generated Go export is invalid")

// GoExportOptions controls GenerateGo.
type GoExportOptions struct {
	// Package is the Go package name of the generated file.
	Package string

	// SkipValidation disables type-checking of the generated source.
	SkipValidation bool
}

// Result contains the generated Go source.
type Result struct {
	Code      string
	Constants []string
}

// GenerateGo renders a Go file that embeds image and declares an address
// constant for every named stage, animation, light cue, menu and script
// variable.
func GenerateGo(table *linker.SymbolTable, image []byte, opts GoExportOptions) (*Result, error) {
	pkg := opts.Package
	if pkg == "" {
		pkg = "cartridge"
	}
	ctx := table.Context()
	game := table.Game()

	g := &exporter{used: make(map[string]bool)}
	g.add("StartupCode", game.StartupCode)
	g.add("PersistentVars", game.PersistentVars)
	g.add("PersistentCRC", game.PersistentCRC)
	for _, s := range ctx.Stages() {
		g.add(ExportedName(bytecode.KindStage, s.Name()), s.Addr())
	}
	for _, a := range ctx.Animations() {
		g.add(ExportedName(bytecode.KindAnimation, a.Name()), a.Addr())
	}
	for _, q := range ctx.Cues() {
		g.add(ExportedName(bytecode.KindCue, q.Name()), q.Addr())
	}
	for _, m := range ctx.Menus() {
		g.add(ExportedName(bytecode.KindMenu, m.Name()), m.Addr())
	}
	for _, v := range ctx.AllVariables() {
		if strings.Contains(v.Name(), ".") || v.Storage.IsBuiltin() {
			continue
		}
		g.add(ExportedName(bytecode.KindVariable, v.Name()), v.Addr())
	}

	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by gqc. DO NOT EDIT.")
	f.PackageComment(fmt.Sprintf("Package %s embeds the cartridge %q.", pkg, game.Title))

	f.Const().Defs(
		jen.Id("Title").Op("=").Lit(game.Title),
		jen.Id("GameID").Op("=").Lit(int(game.ID)),
		jen.Id("Size").Op("=").Lit(len(image)),
	)
	f.Line()

	f.Comment("Addresses of named symbols.")
	f.Const().Defs(g.defs...)
	f.Line()

	f.Comment("Image is the cartridge as written to flash.")
	f.Var().Id("Image").Op("=").Id("mustDecode").Call(jen.Lit(hex.EncodeToString(image)))
	f.Line()

	f.Func().Id("mustDecode").Params(jen.Id("s").String()).Index().Byte().Block(
		jen.List(jen.Id("b"), jen.Err()).Op(":=").Qual("encoding/hex", "DecodeString").Call(jen.Id("s")),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Panic(jen.Err()),
		),
		jen.Return(jen.Id("b")),
	)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("rendering Go export: %w", err)
	}
	code := buf.String()

	if !opts.SkipValidation {
		filename := pkg + ".go"
		if errs := NewCodeValidator(filename).Validate(code); len(errs) > 0 {
			return nil, fmt.Errorf("%w:\n%s", ErrInvalidExport, FormatValidationErrors(errs, filename))
		}
	}
	log.Debugf("go export: package %s, %d constants", pkg, len(g.names))
	return &Result{Code: code, Constants: g.names}, nil
}

type exporter struct {
	defs  []jen.Code
	names []string
	used  map[string]bool
}

func (g *exporter) add(name string, addr bytecode.Pointer) {
	base := name
	for i := 2; g.used[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	g.used[name] = true
	g.names = append(g.names, name)
	g.defs = append(g.defs, jen.Id(name).Uint32().Op("=").Op(fmt.Sprintf("0x%08X", uint32(addr))))
}

// goIdent turns a script name into an exported Go identifier with prefix:
// "ask_name" becomes "StageAskName".
func goIdent(prefix, name string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ExportedName returns the constant GenerateGo declares for a symbol of
// the given kind, before collision suffixes.
func ExportedName(kind bytecode.SymbolKind, name string) string {
	switch kind {
	case bytecode.KindStage:
		return goIdent("Stage", name)
	case bytecode.KindAnimation:
		return goIdent("Anim", name)
	case bytecode.KindCue:
		return goIdent("Cue", name)
	case bytecode.KindMenu:
		return goIdent("Menu", name)
	case bytecode.KindVariable:
		return goIdent("Var", name)
	}
	return ""
}
