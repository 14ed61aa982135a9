// Package codegen turns a linked symbol table into the cartridge image and,
// optionally, a Go package embedding that image for host-side tools.
package codegen

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/gqc/linker"
	"github.com/chazu/gqc/pkg/bytecode"
)

var (
	// ErrContiguity means a symbol is not at the address the image has
	// reached. The linker never produces this on its own.
	ErrContiguity = errors.New("symbol is not contiguous with the previous one")

	// ErrOversize is linker.ErrOversize, reported again here for tables
	// the linker did not build.
	ErrOversize = linker.ErrOversize
)

var log = commonlog.GetLogger("gqc.codegen")

// Generate concatenates every cartridge symbol in link order. Symbols in
// other namespaces (the heap) are skipped.
func Generate(table *linker.SymbolTable) ([]byte, error) {
	out := make([]byte, 0, table.CartSize())
	var next uint32

	for _, sec := range table.Sections() {
		if sec.Namespace != bytecode.NSCart {
			continue
		}
		for _, sym := range sec.Symbols {
			if next > bytecode.MaxOffset {
				return nil, fmt.Errorf("%w: at %s in %s", ErrOversize, sym.Name(), sec.Name)
			}
			addr := sym.Addr()
			if addr.Namespace() != bytecode.NSCart || addr.Offset() != next {
				return nil, fmt.Errorf("%w: %s at %s, expected offset 0x%06X", ErrContiguity, sym.Name(), addr, next)
			}
			b, err := sym.Bytes()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", sym.Name(), err)
			}
			if len(b) != sym.Size() {
				return nil, fmt.Errorf("%w: %s encoded %d bytes, declared %d", ErrContiguity, sym.Name(), len(b), sym.Size())
			}
			out = append(out, b...)
			next += uint32(len(b))
		}
		log.Debugf("%-10s ends at 0x%06X", sec.Name, next)
	}
	return out, nil
}
