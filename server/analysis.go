package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/gqc/compiler"
	"github.com/chazu/gqc/linker"
	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// SymbolKind classifies an indexed name.
type SymbolKind string

const (
	KindVariable  SymbolKind = "variable"
	KindBuiltin   SymbolKind = "builtin"
	KindStage     SymbolKind = "stage"
	KindAnimation SymbolKind = "animation"
	KindCue       SymbolKind = "lightcue"
	KindMenu      SymbolKind = "menu"
)

// Symbol is a declared name and how it was declared.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Loc    bytecode.SourceLocation // zero for builtins
	Detail string
}

// Severity of a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is a positioned finding. Width is the number of columns to
// underline.
type Diagnostic struct {
	Loc      bytecode.SourceLocation
	Width    int
	Severity Severity
	Message  string
}

// Analysis is everything the server knows about one document.
type Analysis struct {
	Diagnostics []Diagnostic
	Symbols     map[string]*Symbol
	Idents      []compiler.Ident
}

var builtinDocs = map[string]string{
	"GQI_MENU_ACTIVE":     "int: nonzero while the stage menu is shown",
	"GQI_MENU_VALUE":      "int: value of the option picked in the last menu",
	"GQS_TEXTMENU_RESULT": "str: text entered in the last text menu",
}

// Analyze parses and checks one document. Assets are not loaded, so every
// animation and light cue is checked against a placeholder. When the text
// does not parse, prev supplies the symbols so completion keeps working
// while the user types.
func Analyze(filename, text string, prev *Analysis) *Analysis {
	a := &Analysis{Symbols: make(map[string]*Symbol)}
	src := []byte(text)

	idents, err := compiler.Idents(filename, src)
	if err == nil {
		a.Idents = idents
	}

	f, err := compiler.Parse(filename, src)
	if err != nil {
		a.addError(err)
		if prev != nil {
			a.Symbols = prev.Symbols
		}
		return a
	}
	a.index(f, filename)

	res, err := compiler.CompileFile(f, compiler.Options{Filename: filename})
	if err != nil {
		a.addError(err)
		return a
	}
	for _, w := range res.Warnings {
		a.Diagnostics = append(a.Diagnostics, Diagnostic{Loc: w.Loc, Width: 1, Severity: SeverityWarning, Message: w.Message})
	}

	if _, err := linker.Link(res.Context); err != nil {
		var unresolved *linker.UnresolvedError
		if errors.As(err, &unresolved) {
			for _, item := range unresolved.Items {
				a.Diagnostics = append(a.Diagnostics, Diagnostic{
					Loc:     item.Loc,
					Width:   1,
					Message: fmt.Sprintf("undefined: %s", strings.Join(item.Missing, ", ")),
				})
			}
		} else {
			a.addError(err)
		}
	}
	return a
}

func (a *Analysis) addError(err error) {
	var perr *program.Error
	if errors.As(err, &perr) {
		unlocated := &program.Error{Err: perr.Err, Msg: perr.Msg}
		a.Diagnostics = append(a.Diagnostics, Diagnostic{Loc: perr.Loc, Width: 1, Message: unlocated.Error()})
		return
	}
	a.Diagnostics = append(a.Diagnostics, Diagnostic{Message: err.Error()})
}

func (a *Analysis) add(sym *Symbol) {
	if _, ok := a.Symbols[sym.Name]; !ok {
		a.Symbols[sym.Name] = sym
	}
}

// index records every declaration in f. Declaration positions point at the
// keyword that starts them; they are moved onto the declared name when the
// identifier list has it.
func (a *Analysis) index(f *compiler.File, filename string) {
	for name, doc := range builtinDocs {
		a.add(&Symbol{Name: name, Kind: KindBuiltin, Detail: doc})
	}
	for _, sec := range f.Sections {
		switch {
		case sec.Vars != nil:
			for _, d := range sec.Vars.Vars {
				a.add(&Symbol{
					Name:   d.Name,
					Kind:   KindVariable,
					Loc:    a.nameLoc(d.Name, filename, d.Pos.Line, d.Pos.Column),
					Detail: fmt.Sprintf("%s %s %s %s %s", sec.Vars.Storage, d.Type, d.Name, d.Assign, varInit(d)),
				})
			}
		case sec.Animations != nil:
			for _, d := range sec.Animations.Animations {
				detail := fmt.Sprintf("animation %s <- %q", d.Name, d.Source)
				if len(d.Options) > 0 {
					opts := make([]string, len(d.Options))
					for i, o := range d.Options {
						opts[i] = settingString(o)
					}
					detail += " { " + strings.Join(opts, " ") + " }"
				}
				a.add(&Symbol{Name: d.Name, Kind: KindAnimation, Loc: a.nameLoc(d.Name, filename, d.Pos.Line, d.Pos.Column), Detail: detail})
			}
		case sec.Cues != nil:
			for _, d := range sec.Cues.Cues {
				a.add(&Symbol{
					Name:   d.Name,
					Kind:   KindCue,
					Loc:    a.nameLoc(d.Name, filename, d.Pos.Line, d.Pos.Column),
					Detail: fmt.Sprintf("lightcue %s <- %q", d.Name, d.Source),
				})
			}
		case sec.Menus != nil:
			for _, d := range sec.Menus.Menus {
				var sb strings.Builder
				fmt.Fprintf(&sb, "menu %s", d.Name)
				for _, o := range d.Options {
					neg := ""
					if o.Neg {
						neg = "-"
					}
					fmt.Fprintf(&sb, "\n  %s%s: %q", neg, o.Value, o.Label)
				}
				a.add(&Symbol{Name: d.Name, Kind: KindMenu, Loc: a.nameLoc(d.Name, filename, d.Pos.Line, d.Pos.Column), Detail: sb.String()})
			}
		case sec.Stage != nil:
			d := sec.Stage
			a.add(&Symbol{Name: d.Name, Kind: KindStage, Loc: a.nameLoc(d.Name, filename, d.Pos.Line, d.Pos.Column), Detail: stageDetail(d)})
		}
	}
}

// nameLoc finds the first occurrence of name at or after line:col.
func (a *Analysis) nameLoc(name, filename string, line, col int) bytecode.SourceLocation {
	for _, id := range a.Idents {
		if id.Name != name {
			continue
		}
		if id.Loc.Line > line || (id.Loc.Line == line && id.Loc.Column >= col) {
			return id.Loc
		}
	}
	return bytecode.SourceLocation{File: filename, Line: line, Column: col}
}

func varInit(d *compiler.VarDecl) string {
	neg := ""
	if d.Neg {
		neg = "-"
	}
	switch {
	case d.Int != nil:
		return neg + *d.Int
	case d.Str != nil:
		return fmt.Sprintf("%q", *d.Str)
	}
	return ""
}

func settingString(s *compiler.Setting) string {
	neg := ""
	if s.Neg {
		neg = "-"
	}
	v := ""
	switch {
	case s.Int != nil:
		v = neg + *s.Int
	case s.Str != nil:
		v = fmt.Sprintf("%q", *s.Str)
	case s.Ident != nil:
		v = *s.Ident
	}
	return fmt.Sprintf("%s %s %s;", s.Key, s.Assign, v)
}

func stageDetail(d *compiler.StageDecl) string {
	var (
		sb     strings.Builder
		events []string
	)
	fmt.Fprintf(&sb, "stage %s", d.Name)
	for _, o := range d.Options {
		switch {
		case o.BgAnim != nil:
			fmt.Fprintf(&sb, "\n  bganim %s", *o.BgAnim)
		case o.BgCue != nil:
			fmt.Fprintf(&sb, "\n  bgcue %s", *o.BgCue)
		case o.Menu != nil:
			fmt.Fprintf(&sb, "\n  menu %s", o.Menu.Name)
			if o.Menu.Prompt != nil {
				fmt.Fprintf(&sb, " prompt %q", *o.Menu.Prompt)
			}
		case o.Event != nil:
			if o.Event.Input != nil {
				events = append(events, "input("+*o.Event.Input+")")
			} else {
				events = append(events, *o.Event.Name)
			}
		}
	}
	if len(events) > 0 {
		fmt.Fprintf(&sb, "\n  events: %s", strings.Join(events, ", "))
	}
	return sb.String()
}

// References returns every occurrence of name.
func (a *Analysis) References(name string) []bytecode.SourceLocation {
	var out []bytecode.SourceLocation
	for _, id := range a.Idents {
		if id.Name == name {
			out = append(out, id.Loc)
		}
	}
	return out
}

// Complete returns the declared names starting with prefix, compared
// case-insensitively, sorted by name.
func (a *Analysis) Complete(prefix string) []*Symbol {
	lowerPrefix := strings.ToLower(prefix)
	var out []*Symbol
	for name, sym := range a.Symbols {
		if strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Workspace caches the analysis of every open document.
type Workspace struct {
	docs     map[string]string
	analyses map[string]*Analysis
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{
		docs:     make(map[string]string),
		analyses: make(map[string]*Analysis),
	}
}

// Update stores a document's text and re-analyzes it.
func (ws *Workspace) Update(uri, text string) *Analysis {
	ws.docs[uri] = text
	a := Analyze(uriPath(uri), text, ws.analyses[uri])
	ws.analyses[uri] = a
	return a
}

// Close forgets a document.
func (ws *Workspace) Close(uri string) {
	delete(ws.docs, uri)
	delete(ws.analyses, uri)
}

// Text returns the last known text of a document.
func (ws *Workspace) Text(uri string) (string, bool) {
	t, ok := ws.docs[uri]
	return t, ok
}

// Analysis returns the last analysis of a document.
func (ws *Workspace) Analysis(uri string) (*Analysis, bool) {
	a, ok := ws.analyses[uri]
	return a, ok
}

// uriPath turns a file:// URI into the path shown in positions.
func uriPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
