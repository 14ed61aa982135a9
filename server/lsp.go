// Package server implements the gqc language server.
package server

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/gqc/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "gqc-lsp"

var log = commonlog.GetLogger("gqc.server")

// keywords offered by completion.
var keywords = []string{
	"game", "volatile", "persistent", "int", "str", "animations", "lightcues",
	"menus", "stage", "bganim", "bgcue", "menu", "prompt", "event", "input",
	"enter", "bgdone", "timer", "if", "else", "loop", "break", "continue",
	"play", "cue", "gostage", "qcset", "qcclr", "qcget",
	"id", "title", "author", "starting_stage",
	"frame_rate", "dithering", "width", "height",
}

// LspServer bridges LSP editor features to the compiler front end via Worker.
type LspServer struct {
	worker *Worker

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server with an empty workspace.
func NewLSP(version string) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace()),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("gqc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	_, _ = s.worker.Do(func(ws *Workspace) any {
		ws.Close(uri)
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) any {
		return ws.Update(uri, text)
	})
	if err != nil {
		log.Errorf("analyzing %s: %v", uri, err)
		return
	}
	a := result.(*Analysis)
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toDiagnostics(a.Diagnostics),
	})
}

// --- Language features ---

// lookup runs fn with the document's text and analysis on the worker.
func (s *LspServer) lookup(uri protocol.DocumentUri, fn func(text string, a *Analysis) any) any {
	result, err := s.worker.Do(func(ws *Workspace) any {
		text, ok := ws.Text(uri)
		if !ok {
			return nil
		}
		a, _ := ws.Analysis(uri)
		return fn(text, a)
	})
	if err != nil {
		log.Errorf("%s: %v", uri, err)
		return nil
	}
	return result
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	result := s.lookup(params.TextDocument.URI, func(text string, a *Analysis) any {
		prefix := extractPrefix(text, params.Position)
		if prefix == "" {
			return nil
		}
		return complete(a, prefix)
	})
	if result == nil {
		return nil, nil
	}
	return result.([]protocol.CompletionItem), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	result := s.lookup(params.TextDocument.URI, func(text string, a *Analysis) any {
		return hover(a, extractWord(text, params.Position))
	})
	if h, ok := result.(*protocol.Hover); ok && h != nil {
		return h, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	result := s.lookup(uri, func(text string, a *Analysis) any {
		return definition(a, uri, extractWord(text, params.Position))
	})
	if locs, ok := result.([]protocol.Location); ok && len(locs) > 0 {
		return locs, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	result := s.lookup(uri, func(text string, a *Analysis) any {
		return references(a, uri, extractWord(text, params.Position))
	})
	if locs, ok := result.([]protocol.Location); ok {
		return locs, nil
	}
	return nil, nil
}

// --- Analysis-backed logic (called on worker goroutine) ---

func completionKind(k SymbolKind) protocol.CompletionItemKind {
	switch k {
	case KindVariable:
		return protocol.CompletionItemKindVariable
	case KindBuiltin:
		return protocol.CompletionItemKindConstant
	case KindStage:
		return protocol.CompletionItemKindModule
	case KindAnimation:
		return protocol.CompletionItemKindFile
	case KindCue:
		return protocol.CompletionItemKindColor
	}
	return protocol.CompletionItemKindEnum
}

func complete(a *Analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	for _, kw := range keywords {
		if strings.HasPrefix(kw, lowerPrefix) {
			kind := protocol.CompletionItemKindKeyword
			detail := "keyword"
			kwCopy := kw
			items = append(items, protocol.CompletionItem{
				Label:      kw,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &kwCopy,
			})
		}
	}

	if a != nil {
		for _, sym := range a.Complete(prefix) {
			kind := completionKind(sym.Kind)
			detail := string(sym.Kind)
			name := sym.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func hover(a *Analysis, word string) *protocol.Hover {
	if a == nil || word == "" {
		return nil
	}
	sym, ok := a.Symbols[word]
	if !ok {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)\n\n", sym.Name, sym.Kind)
	if sym.Kind == KindBuiltin {
		b.WriteString(sym.Detail)
	} else {
		fmt.Fprintf(&b, "```gqc\n%s\n```", sym.Detail)
	}
	if sym.Loc.Line > 0 {
		fmt.Fprintf(&b, "\n\nDeclared at line %d", sym.Loc.Line)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func definition(a *Analysis, uri protocol.DocumentUri, word string) []protocol.Location {
	if a == nil || word == "" {
		return nil
	}
	sym, ok := a.Symbols[word]
	if !ok || sym.Loc.Line == 0 {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: toRange(sym.Loc, len(sym.Name))}}
}

func references(a *Analysis, uri protocol.DocumentUri, word string) []protocol.Location {
	if a == nil || word == "" {
		return nil
	}
	var locations []protocol.Location
	for _, loc := range a.References(word) {
		locations = append(locations, protocol.Location{URI: uri, Range: toRange(loc, len(word))})
	}
	return locations
}

// --- Position conversion ---

// toRange converts a 1-based location into a 0-based LSP range width
// columns wide. Unknown locations map to the start of the document.
func toRange(loc bytecode.SourceLocation, width int) protocol.Range {
	if loc.Line == 0 {
		return protocol.Range{}
	}
	line := protocol.UInteger(loc.Line - 1)
	col := 0
	if loc.Column > 0 {
		col = loc.Column - 1
	}
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: protocol.UInteger(col)},
		End:   protocol.Position{Line: line, Character: protocol.UInteger(col + width)},
	}
}

func toDiagnostics(diags []Diagnostic) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lspName
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, protocol.Diagnostic{
			Range:    toRange(d.Loc, d.Width),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 && isIdentRune(rune(line[start-1])) {
		start--
	}

	// Find end
	end := col
	for end < len(line) && isIdentRune(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
