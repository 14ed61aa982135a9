package linker

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/chazu/gqc/pkg/bytecode"
	"github.com/chazu/gqc/program"
)

// WriteMap prints the section and symbol layout.
func WriteMap(w io.Writer, t *SymbolTable) error {
	title := "Linker summary for " + t.Game().Title
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Section\tStart\tSize\tSymbol")
	fmt.Fprintln(tw, "-------\t-----\t----\t------")
	for _, sec := range t.Sections() {
		if len(sec.Symbols) == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%#06x\t\n", sec.Name, sec.Addr(), sec.Size())
		for _, sym := range sec.Symbols {
			fmt.Fprintf(tw, "\t%s\t%#06x\t%s\n", sym.Addr(), sym.Size(), describe(sym))
		}
	}
	return tw.Flush()
}

// WriteListing prints every event and startup instruction with its raw
// encoding.
func WriteListing(w io.Writer, t *SymbolTable) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Address\tCommand\tOp\tFlags\tArg1\tArg2")

	for _, sym := range t.Section(SectionEvent).Symbols {
		ev := sym.(*program.Event)
		fmt.Fprintf(tw, "%s\tEVENT:%s\t\t\t\t\n", ev.Addr(), ev.Name())
		for _, ins := range ev.Code {
			listInstruction(tw, ins)
		}
	}
	if init := t.Section(SectionInit); len(init.Symbols) > 0 {
		fmt.Fprintf(tw, "%s\tINIT\t\t\t\t\n", init.Addr())
		for _, sym := range init.Symbols {
			if ins, ok := sym.(*bytecode.Instruction); ok {
				listInstruction(tw, ins)
			}
		}
	}
	return tw.Flush()
}

func listInstruction(w io.Writer, ins *bytecode.Instruction) {
	raw := ins.Raw()
	fmt.Fprintf(w, "%s\t%s\t%#04x\t%#04x\t%#010x\t%#010x\n",
		ins.Addr(), ins.Op, byte(raw.Op), byte(raw.Flags), raw.Arg1, raw.Arg2)
}

func describe(sym program.Symbol) string {
	switch s := sym.(type) {
	case *program.Game:
		if s.Author != "" {
			return fmt.Sprintf("game %q by %s", s.Title, s.Author)
		}
		return fmt.Sprintf("game %q", s.Title)
	case *program.Animation:
		return fmt.Sprintf("animation %s (%d frames, %dx%d)", s.Name(), len(s.Frames), s.Width, s.Height)
	case *program.Frame:
		return fmt.Sprintf("frame %s %s", s.Name(), s.Encoding)
	case *program.FrameData:
		return "frame data " + s.Name()
	case *program.LightCue:
		return fmt.Sprintf("lightcue %s (%d frames)", s.Name(), len(s.Frames))
	case *program.CueFrame:
		return "lightcue frame " + s.Name()
	case *program.Menu:
		return fmt.Sprintf("menu %s (%d options)", s.Name(), len(s.Options))
	case *program.Stage:
		return fmt.Sprintf("stage %s #%d", s.Name(), s.ID)
	case *program.Event:
		return fmt.Sprintf("event %s (%d instructions)", s.Name(), len(s.Code))
	case *program.Variable:
		return fmt.Sprintf("%s %s %s = %s", s.Storage, s.Type, s.Name(), s.Value)
	case *program.Mirror:
		return "cache of " + s.Of().Name()
	case *program.Padding:
		return "fill " + s.Name()
	case *bytecode.Instruction:
		return s.String()
	}
	return sym.Name()
}
