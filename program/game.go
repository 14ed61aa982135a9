package program

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
)

// Magic identifies a cartridge image.
const Magic = "GQ01"

// HeaderSize is the encoded size of the game header including its CRC.
const HeaderSize = 4 + 2 + StrSize + 2 + 2 + 4*bytecode.PointerSize + 1 + 2 + 2

// Game is the cartridge header. It is the first symbol in the image.
type Game struct {
	placement

	ID            uint16
	Title         string
	Author        string
	StartingStage string
	Color         uint8
	Flags         uint16
	Loc           bytecode.SourceLocation

	// Set by the linker once the sections exist.
	StartupCode    bytecode.Pointer
	PersistentVars bytecode.Pointer
	PersistentCRC  bytecode.Pointer

	ctx      *Context
	start    bytecode.Pointer
	resolved bool
}

func (g *Game) Name() string { return "game" }

func (g *Game) Size() int { return HeaderSize }

func (g *Game) Place(ns bytecode.Namespace, offset uint32) error {
	return g.place(g.Name(), ns, offset)
}

// Resolve looks up the starting stage and checks the linker has filled in
// the section pointers.
func (g *Game) Resolve(r bytecode.Resolver) bool {
	if g.resolved {
		return true
	}
	p, ok := r.Lookup(bytecode.KindStage, g.StartingStage)
	if !ok {
		return false
	}
	g.start = p
	g.resolved = !g.StartupCode.IsNull() && !g.PersistentVars.IsNull() && !g.PersistentCRC.IsNull()
	return g.resolved
}

// Unresolved lists what the last Resolve could not find.
func (g *Game) Unresolved() []string {
	if g.resolved {
		return nil
	}
	var missing []string
	if g.start.IsNull() {
		missing = append(missing, "stage:"+g.StartingStage)
	}
	if g.StartupCode.IsNull() {
		missing = append(missing, "startup code")
	}
	if g.PersistentVars.IsNull() || g.PersistentCRC.IsNull() {
		missing = append(missing, "persistent section")
	}
	return missing
}

// Bytes encodes the header. The trailing CRC covers every byte before it.
func (g *Game) Bytes() ([]byte, error) {
	if !g.resolved {
		return nil, fmt.Errorf("%w: game header %v", bytecode.ErrUnresolved, g.Unresolved())
	}
	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, g.ID)
	buf = append(buf, fixedString(g.Title)...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(g.ctx.Animations())))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(g.ctx.Stages())))
	for _, p := range []bytecode.Pointer{g.start, g.StartupCode, g.PersistentVars, g.PersistentCRC} {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(p))
	}
	buf = append(buf, g.Color)
	buf = binary.LittleEndian.AppendUint16(buf, g.Flags)
	buf = binary.LittleEndian.AppendUint16(buf, bytecode.CRC16(buf))
	return buf, nil
}
