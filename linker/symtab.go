package linker

import (
	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// Section names, in link order.
const (
	SectionGame      = ".game"
	SectionAnim      = ".anim"
	SectionFrame     = ".frame"
	SectionFrameData = ".framedata"
	SectionCue       = ".cue"
	SectionCueFrame  = ".cueframe"
	SectionMenu      = ".menu"
	SectionStage     = ".stage"
	SectionEvent     = ".event"
	SectionInit      = ".init"
	SectionVar       = ".var"
	SectionCache     = ".cache"
	SectionHeap      = ".heap"
)

var sectionOrder = []struct {
	name string
	ns   bytecode.Namespace
}{
	{SectionGame, bytecode.NSCart},
	{SectionAnim, bytecode.NSCart},
	{SectionFrame, bytecode.NSCart},
	{SectionFrameData, bytecode.NSCart},
	{SectionCue, bytecode.NSCart},
	{SectionCueFrame, bytecode.NSCart},
	{SectionMenu, bytecode.NSCart},
	{SectionStage, bytecode.NSCart},
	{SectionEvent, bytecode.NSCart},
	{SectionInit, bytecode.NSCart},
	{SectionVar, bytecode.NSCart},
	{SectionCache, bytecode.NSCart},
	{SectionHeap, bytecode.NSHeap},
}

// Section is a run of symbols placed back to back in one namespace.
type Section struct {
	Name      string
	Namespace bytecode.Namespace
	Start     uint32
	Symbols   []program.Symbol
}

// Size is the sum of the symbol sizes.
func (s *Section) Size() int {
	n := 0
	for _, sym := range s.Symbols {
		n += sym.Size()
	}
	return n
}

// Addr is the section's start address.
func (s *Section) Addr() bytecode.Pointer {
	p, err := bytecode.MakePointer(s.Namespace, s.Start)
	if err != nil {
		return bytecode.Null
	}
	return p
}

// SymbolTable is the result of linking: every section in link order.
type SymbolTable struct {
	ctx      *program.Context
	sections []*Section
	index    map[string]*Section
}

func newSymbolTable(ctx *program.Context) *SymbolTable {
	t := &SymbolTable{ctx: ctx, index: make(map[string]*Section)}
	for _, s := range sectionOrder {
		sec := &Section{Name: s.name, Namespace: s.ns}
		t.sections = append(t.sections, sec)
		t.index[s.name] = sec
	}
	return t
}

// Context returns the linked program.
func (t *SymbolTable) Context() *program.Context { return t.ctx }

// Game returns the header symbol.
func (t *SymbolTable) Game() *program.Game { return t.ctx.Game() }

// Sections returns all sections in link order, including empty ones.
func (t *SymbolTable) Sections() []*Section { return t.sections }

// Section returns the named section or nil.
func (t *SymbolTable) Section(name string) *Section { return t.index[name] }

// CartSize is the number of bytes placed in the cartridge namespace.
func (t *SymbolTable) CartSize() int {
	n := 0
	for _, sec := range t.sections {
		if sec.Namespace == bytecode.NSCart {
			n += sec.Size()
		}
	}
	return n
}

// Lookup finds a placed symbol by name across all sections.
func (t *SymbolTable) Lookup(name string) (program.Symbol, bool) {
	for _, sec := range t.sections {
		for _, sym := range sec.Symbols {
			if sym.Name() == name {
				return sym, true
			}
		}
	}
	return nil, false
}
