package compiler

import "github.com/alecthomas/participle/lexer"

// ---------------------------------------------------------------------------
// Script grammar. Keywords are plain identifiers matched by value, so the
// order of alternatives matters wherever a keyword and an identifier could
// both start a production.
// ---------------------------------------------------------------------------

// File is a parsed .gqc script.
type File struct {
	Pos lexer.Position

	Sections []*Section `{ @@ }`
}

// Section is one top-level declaration block.
type Section struct {
	Pos lexer.Position

	Game       *GameDecl         `  @@`
	Vars       *VarSection       `| @@`
	Animations *AnimationSection `| @@`
	Cues       *CueSection       `| @@`
	Menus      *MenuSection      `| @@`
	Stage      *StageDecl        `| @@`
}

// GameDecl is the cartridge header block.
type GameDecl struct {
	Pos lexer.Position

	Settings []*Setting `"game" "{" { @@ } "}"`
}

// Setting is a `key = value;` or `key := value;` pair. The key and the
// assignment form are checked when the declaration is processed.
type Setting struct {
	Pos lexer.Position

	Key    string  `@Ident`
	Assign string  `@( "=" | ":=" )`
	Neg    bool    `( [ @"-" ]`
	Int    *string `  @Int`
	Str    *string `| @String`
	Ident  *string `| @Ident ) ";"`
}

// VarSection declares volatile or persistent variables.
type VarSection struct {
	Pos lexer.Position

	Storage string     `@( "volatile" | "persistent" )`
	Vars    []*VarDecl `( "{" { @@ } "}" | @@ )`
}

// VarDecl is `int name = 1;` or `str name := "x";`.
type VarDecl struct {
	Pos lexer.Position

	Type   string  `@( "int" | "str" )`
	Name   string  `@Ident`
	Assign string  `@( "=" | ":=" )`
	Neg    bool    `( [ @"-" ]`
	Int    *string `  @Int`
	Str    *string `| @String ) ";"`
}

// AnimationSection declares background animations.
type AnimationSection struct {
	Pos lexer.Position

	Animations []*AnimationDecl `"animations" ( "{" { @@ } "}" | @@ )`
}

// AnimationDecl is `name <- "source" { options }`.
type AnimationDecl struct {
	Pos lexer.Position

	Name    string     `@Ident "<-"`
	Source  string     `@String`
	Options []*Setting `( ";" | "{" { @@ } "}" | @@ )`
}

// CueSection declares light cues loaded from .gqcue files.
type CueSection struct {
	Pos lexer.Position

	Cues []*CueDecl `"lightcues" ( "{" { @@ } "}" | @@ )`
}

// CueDecl is `name <- "file.gqcue";`.
type CueDecl struct {
	Pos lexer.Position

	Name   string `@Ident "<-"`
	Source string `@String ";"`
}

// MenuSection declares menus.
type MenuSection struct {
	Pos lexer.Position

	Menus []*MenuDecl `"menus" ( "{" { @@ } "}" | @@ )`
}

// MenuDecl is a named list of options.
type MenuDecl struct {
	Pos lexer.Position

	Name    string        `@Ident`
	Options []*MenuOption `( "{" { @@ } "}" | @@ )`
}

// MenuOption is `value: "label";`.
type MenuOption struct {
	Pos lexer.Position

	Neg   bool   `[ @"-" ]`
	Value string `@Int ":"`
	Label string `@String ";"`
}

// StageDecl is a stage and its options.
type StageDecl struct {
	Pos lexer.Position

	Name    string         `"stage" @Ident`
	Options []*StageOption `( "{" { @@ } "}" | @@ )`
}

// StageOption is one entry of a stage body.
type StageOption struct {
	Pos lexer.Position

	BgAnim *string    `  "bganim" @Ident ";"`
	BgCue  *string    `| "bgcue" @Ident ";"`
	Menu   *StageMenu `| @@`
	Event  *EventDecl `| @@`
}

// StageMenu binds a menu and optional prompt to a stage.
type StageMenu struct {
	Pos lexer.Position

	Name   string  `"menu" @Ident`
	Prompt *string `[ "prompt" @String ] ";"`
}

// EventDecl is an event handler.
type EventDecl struct {
	Pos lexer.Position

	Input *string `"event" ( "input" "(" @( "A" | "B" | "<-" | "->" | "-" ) ")"`
	Name  *string `| @( "enter" | "bgdone" | "menu" | "timer" ) )`
	Body  *Block  `@@`
}

// Block is a braced statement list.
type Block struct {
	Pos lexer.Position

	Stmts []*Stmt `"{" { @@ } "}"`
}

// Stmt is one statement of an event body.
type Stmt struct {
	Pos lexer.Position

	If       *IfStmt `  @@`
	Loop     *Block  `| "loop" @@`
	Break    bool    `| @"break" ";"`
	Continue bool    `| @"continue" ";"`
	Play     *string `| "play" "bganim" @Ident ";"`
	Cue      *string `| "cue" @Ident ";"`
	GoStage  *string `| "gostage" @Ident ";"`
	Timer    *Expr   `| "timer" @@ ";"`
	QCSet    *Expr   `| "qcset" @@ ";"`
	QCClr    *Expr   `| "qcclr" @@ ";"`
	Assign   *Assign `| @@`
}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Pos lexer.Position

	Cond *Expr  `"if" "(" @@ ")"`
	Then *Block `@@`
	Else *Else  `[ "else" @@ ]`
}

// Else is either a chained if or a block.
type Else struct {
	Pos lexer.Position

	If    *IfStmt `  @@`
	Block *Block  `| @@`
}

// Assign is `x = expr;` for ints or `s := expr;` for strings.
type Assign struct {
	Pos lexer.Position

	Target string `@Ident`
	Op     string `@( "=" | ":=" )`
	Value  *Expr  `@@ ";"`
}

// Expr is a flat operator chain; precedence is applied when lowering.
type Expr struct {
	Pos lexer.Position

	Head *Unary    `@@`
	Tail []*OpTerm `{ @@ }`
}

// OpTerm is one `op operand` link of an Expr chain.
type OpTerm struct {
	Pos lexer.Position

	Op      string `@( "||" | "&&" | "==" | "!=" | "<=" | ">=" | "<<" | ">>" | "<" | ">" | "+" | "-" | "*" | "/" | "%" | "&" | "|" | "^" )`
	Operand *Unary `@@`
}

// Unary is a prefixed operand or a primary.
type Unary struct {
	Pos lexer.Position

	Op      string   `  ( @( "!" | "-" | "~" )`
	Operand *Unary   `    @@ )`
	Primary *Primary `| @@`
}

// Primary is a literal, variable, qcget call or parenthesized expression.
type Primary struct {
	Pos lexer.Position

	Int   *string `  @Int`
	Str   *string `| @String`
	QCGet *Expr   `| "qcget" "(" @@ ")"`
	Ident *string `| @Ident`
	Sub   *Expr   `| "(" @@ ")"`
}

// ---------------------------------------------------------------------------
// Light-cue grammar
// ---------------------------------------------------------------------------

// CueFile is a parsed .gqcue file.
type CueFile struct {
	Pos lexer.Position

	Colors []*ColorDef     `"colors" ( "{" { @@ } "}" | @@ )`
	Frames []*CueFrameDecl `@@ { @@ }`
}

// ColorDef names a color: `warm := "#ffaa00";`.
type ColorDef struct {
	Pos lexer.Position

	Name  string `@Ident ":="`
	Value string `@String ";"`
}

// CueFrameDecl is one `frame { ... }` block.
type CueFrameDecl struct {
	Pos lexer.Position

	Params []*CueParam `"frame" "{" { @@ } "}"`
}

// CueParam is a frame parameter.
type CueParam struct {
	Pos lexer.Position

	Duration   *string  `  "duration" "=" @Int ";"`
	Transition *string  `| "transition" ":=" @String ";"`
	Colors     []string `| "colors" "{" ( @Ident | @String ) { "," ( @Ident | @String ) } "}"`
}
