// Package linker places every symbol of a compiled program into its address
// space, synthesizes the startup code and the persistent variable sector,
// and then resolves all symbolic references in one pure pass.
package linker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

const (
	// SectorSize is the flash erase unit. The persistent section occupies
	// exactly one sector and starts on a sector boundary.
	SectorSize = 0x1000

	// HeapSize is the runtime's volatile variable budget.
	HeapSize = 0x200

	// CRCName is the persistent int holding the checksum of the persistent
	// section.
	CRCName = "__crc16.builtin"
)

var (
	ErrHeapOverflow       = errors.New("volatile variables exceed the heap")
	ErrPersistentOverflow = errors.New("persistent variables exceed one flash sector")
	ErrAlreadyLinked      = errors.New("program already linked")
	ErrNoGame             = errors.New("no game header defined")

	// ErrOversize means the cartridge outgrew the 24-bit address space.
	ErrOversize = errors.New("cartridge exceeds the address space")
)

var log = commonlog.GetLogger("gqc.linker")

// Unresolved is one symbol that still has missing references after
// placement.
type Unresolved struct {
	Symbol  string
	Loc     bytecode.SourceLocation
	Missing []string
}

// UnresolvedError lists every failing symbol. It matches
// bytecode.ErrUnresolved.
type UnresolvedError struct {
	Items []Unresolved
}

func (e *UnresolvedError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d symbol(s) with unresolved references", len(e.Items))
	for _, item := range e.Items {
		fmt.Fprintf(&sb, "\n  %s: %s (%s)", item.Loc, item.Symbol, strings.Join(item.Missing, ", "))
	}
	return sb.String()
}

func (e *UnresolvedError) Unwrap() error { return bytecode.ErrUnresolved }

// Linker lays out one program.Context. It is single use.
type Linker struct {
	ctx    *program.Context
	table  *SymbolTable
	cursor map[bytecode.Namespace]uint32
	heap   int
}

// New returns a linker for ctx.
func New(ctx *program.Context) *Linker {
	return &Linker{
		ctx:    ctx,
		table:  newSymbolTable(ctx),
		cursor: make(map[bytecode.Namespace]uint32),
	}
}

// Link places and resolves ctx.
func Link(ctx *program.Context) (*SymbolTable, error) {
	return New(ctx).Link()
}

// Link runs placement followed by resolution and returns the finished
// symbol table.
func (l *Linker) Link() (*SymbolTable, error) {
	game := l.ctx.Game()
	if game == nil {
		return nil, ErrNoGame
	}
	if !game.Addr().IsNull() {
		return nil, ErrAlreadyLinked
	}

	if err := l.placeAll(game); err != nil {
		return nil, err
	}
	if err := l.resolveAll(game); err != nil {
		return nil, err
	}
	log.Infof("linked %q: %d bytes of cartridge, %d bytes of heap", game.Title, l.table.CartSize(), l.heap)
	return l.table, nil
}

// place appends sym to the section at the namespace's running offset.
func (l *Linker) place(sec *Section, sym program.Symbol) error {
	off := l.cursor[sec.Namespace]
	end := uint64(off) + uint64(sym.Size())
	if sec.Namespace == bytecode.NSCart && end > bytecode.MaxOffset+1 {
		return fmt.Errorf("%w: %s in %s ends at 0x%X", ErrOversize, sym.Name(), sec.Name, end)
	}
	if err := sym.Place(sec.Namespace, off); err != nil {
		return err
	}
	l.cursor[sec.Namespace] = off + uint32(sym.Size())
	sec.Symbols = append(sec.Symbols, sym)
	log.Debugf("%-10s %s %5d %s", sec.Name, sym.Addr(), sym.Size(), sym.Name())
	return nil
}

func (l *Linker) section(name string) *Section {
	sec := l.table.Section(name)
	sec.Start = l.cursor[sec.Namespace]
	return sec
}

func (l *Linker) placeAll(game *program.Game) error {
	if err := l.place(l.section(SectionGame), game); err != nil {
		return err
	}
	if err := l.placeAnimations(); err != nil {
		return err
	}
	if err := l.placeCues(); err != nil {
		return err
	}

	menus := l.section(SectionMenu)
	for _, m := range l.ctx.Menus() {
		if err := l.place(menus, m); err != nil {
			return err
		}
	}

	// Volatile variables are on the heap before any code refers to them.
	if err := l.placeHeap(); err != nil {
		return err
	}

	stages := l.section(SectionStage)
	for _, s := range l.ctx.Stages() {
		if err := l.place(stages, s); err != nil {
			return err
		}
	}
	events := l.section(SectionEvent)
	for _, s := range l.ctx.Stages() {
		for _, ev := range s.Events() {
			if err := l.place(events, ev); err != nil {
				return err
			}
		}
	}

	if err := l.placeInit(game); err != nil {
		return err
	}
	if err := l.placePersistent(game); err != nil {
		return err
	}
	return l.placeCache()
}

func (l *Linker) placeAnimations() error {
	anims := l.section(SectionAnim)
	for _, a := range l.ctx.Animations() {
		if err := l.place(anims, a); err != nil {
			return err
		}
	}
	frames := l.section(SectionFrame)
	for _, a := range l.ctx.Animations() {
		for _, f := range a.Frames {
			if err := l.place(frames, f); err != nil {
				return err
			}
		}
	}
	data := l.section(SectionFrameData)
	for _, a := range l.ctx.Animations() {
		for _, f := range a.Frames {
			if err := l.place(data, f.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Linker) placeCues() error {
	cues := l.section(SectionCue)
	for _, q := range l.ctx.Cues() {
		if err := l.place(cues, q); err != nil {
			return err
		}
	}
	frames := l.section(SectionCueFrame)
	for _, q := range l.ctx.Cues() {
		for _, f := range q.Frames {
			if err := l.place(frames, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Linker) placeHeap() error {
	heap := l.section(SectionHeap)
	for _, v := range l.ctx.Variables(program.Volatile) {
		if err := l.place(heap, v); err != nil {
			return err
		}
	}
	l.heap = heap.Size()
	return checkHeap(l.heap)
}

func checkHeap(size int) error {
	if size > HeapSize {
		return fmt.Errorf("%w: %d bytes used, %d available", ErrHeapOverflow, size, HeapSize)
	}
	return nil
}

// placeInit emits the startup code: one SETVAR per volatile variable and a
// DONE, padded with DONE up to the next sector boundary.
func (l *Linker) placeInit(game *program.Game) error {
	init := l.section(SectionInit)
	for _, v := range l.ctx.Variables(program.Volatile) {
		ins, err := v.InitInstruction()
		if err != nil {
			return err
		}
		if err := l.place(init, ins); err != nil {
			return err
		}
	}
	if err := l.place(init, done()); err != nil {
		return err
	}
	game.StartupCode = init.Addr()

	for sectorRemainder(l.cursor[init.Namespace]) >= bytecode.InstructionSize {
		if err := l.place(init, done()); err != nil {
			return err
		}
	}
	if r := sectorRemainder(l.cursor[init.Namespace]); r > 0 {
		return l.place(init, program.NewPadding("__pad.init", r, 0xFF))
	}
	return nil
}

func done() *bytecode.Instruction {
	return bytecode.New(bytecode.OpDone, 0, bytecode.None(), bytecode.None())
}

// sectorRemainder is the distance from off to the next sector boundary.
func sectorRemainder(off uint32) int {
	return int((SectorSize - off%SectorSize) % SectorSize)
}

// placePersistent lays out the persistent sector: every persistent
// variable, then the checksum over their initial bytes, then fill.
func (l *Linker) placePersistent(game *program.Game) error {
	vars := l.ctx.Variables(program.Persistent)

	crc := bytecode.CRCSeed
	for _, v := range vars {
		b, err := v.Bytes()
		if err != nil {
			return err
		}
		crc = bytecode.CRC16Update(crc, b)
	}
	crcVar, err := l.ctx.DefineReserved(program.TypeInt, CRCName, program.IntValue(int32(crc)), program.Persistent)
	if err != nil {
		return err
	}

	sec := l.section(SectionVar)
	for _, v := range append(vars, crcVar) {
		if err := l.place(sec, v); err != nil {
			return err
		}
	}
	if err := checkPersistent(sec.Size()); err != nil {
		return err
	}
	if pad := SectorSize - sec.Size(); pad > 0 {
		if err := l.place(sec, program.NewPadding("__pad.var", pad, 0xFF)); err != nil {
			return err
		}
	}
	game.PersistentVars = sec.Addr()
	game.PersistentCRC = crcVar.Addr()
	log.Debugf("persistent crc16 %04X over %d variables", crc, len(vars))
	return nil
}

func checkPersistent(size int) error {
	if size > SectorSize {
		return fmt.Errorf("%w: %d bytes used, %d available", ErrPersistentOverflow, size, SectorSize)
	}
	return nil
}

// placeCache mirrors the persistent sector byte for byte.
func (l *Linker) placeCache() error {
	cache := l.section(SectionCache)
	for _, sym := range l.table.Section(SectionVar).Symbols {
		if err := l.place(cache, program.NewMirror("__cache."+sym.Name(), sym)); err != nil {
			return err
		}
	}
	return nil
}

// resolveAll resolves every instruction, stage and the header against the
// finished layout. Nothing is placed here.
func (l *Linker) resolveAll(game *program.Game) error {
	var failed []Unresolved

	for _, s := range l.ctx.Stages() {
		for _, ev := range s.Events() {
			for _, ins := range ev.Code {
				if !ins.Resolve(l.ctx) {
					failed = append(failed, Unresolved{
						Symbol: ev.Name() + " " + ins.Op.String(), Loc: ins.Loc, Missing: ins.Unresolved(),
					})
				}
			}
		}
	}
	for _, sym := range l.table.Section(SectionInit).Symbols {
		ins, ok := sym.(*bytecode.Instruction)
		if !ok {
			continue
		}
		if !ins.Resolve(l.ctx) {
			failed = append(failed, Unresolved{Symbol: "init " + ins.Op.String(), Missing: ins.Unresolved()})
		}
	}
	for _, s := range l.ctx.Stages() {
		if !s.Resolve(l.ctx) {
			failed = append(failed, Unresolved{Symbol: "stage " + s.Name(), Loc: s.Loc, Missing: s.Unresolved()})
		}
	}
	if !game.Resolve(l.ctx) {
		failed = append(failed, Unresolved{Symbol: "game", Loc: game.Loc, Missing: game.Unresolved()})
	}

	if len(failed) > 0 {
		return &UnresolvedError{Items: failed}
	}
	return nil
}
