package compiler

import (
	"bytes"
	"errors"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// ErrSyntax wraps every lexing and parsing failure.
var ErrSyntax = errors.New("syntax error")

var gqLexer = lexer.Must(lexer.Regexp(`(?s)(\s+)` +
	`|(//[^\n]*)` +
	`|(/\*.*?\*/)` +
	`|(?P<Int>0[xX][0-9a-fA-F]+|\d+)` +
	`|(?P<String>"(?:[^"\\]|\\.)*")` +
	`|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_]*)` +
	`|(?P<Operator><-|->|:=|==|!=|<=|>=|<<|>>|&&|\|\||[-+*/%<>=!~&|^(){};:,])`,
))

var (
	scriptParser = participle.MustBuild(&File{},
		participle.Lexer(gqLexer),
		participle.Unquote("String"),
		participle.UseLookahead(4),
	)
	cueParser = participle.MustBuild(&CueFile{},
		participle.Lexer(gqLexer),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
)

// Parse parses a script. filename only appears in positions.
func Parse(filename string, src []byte) (*File, error) {
	f := &File{}
	if err := scriptParser.ParseBytes(src, f); err != nil {
		return nil, syntaxError(filename, err)
	}
	return f, nil
}

// ParseCue parses a light-cue file.
func ParseCue(filename string, src []byte) (*CueFile, error) {
	f := &CueFile{}
	if err := cueParser.ParseBytes(src, f); err != nil {
		return nil, syntaxError(filename, err)
	}
	return f, nil
}

// Ident is one identifier occurrence.
type Ident struct {
	Name string
	Loc  bytecode.SourceLocation
}

// Idents lexes src and returns every identifier token, keywords included.
func Idents(filename string, src []byte) ([]Ident, error) {
	lex, err := gqLexer.Lex(bytes.NewReader(src))
	if err != nil {
		return nil, syntaxError(filename, err)
	}
	toks, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, syntaxError(filename, err)
	}
	ident := gqLexer.Symbols()["Ident"]
	var out []Ident
	for _, t := range toks {
		if t.Type == ident {
			out = append(out, Ident{Name: t.Value, Loc: location(filename, t.Pos)})
		}
	}
	return out, nil
}

func syntaxError(filename string, err error) error {
	var perr participle.Error
	if errors.As(err, &perr) {
		tok := perr.Token()
		return program.Errorf(location(filename, tok.Pos), ErrSyntax, "%s", perr.Message())
	}
	return program.Errorf(bytecode.SourceLocation{File: filename}, ErrSyntax, "%v", err)
}

func location(filename string, pos lexer.Position) bytecode.SourceLocation {
	return bytecode.SourceLocation{File: filename, Line: pos.Line, Column: pos.Column}
}
