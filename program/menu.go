package program

import (
	"encoding/binary"

	"github.com/chazu/gqc/pkg/bytecode"
)

// MaxMenuOptions is the number of entries the firmware menu can show.
const MaxMenuOptions = 6

const menuOptionSize = StrSize + IntSize

// MenuOption is one selectable entry.
type MenuOption struct {
	Label string
	Value int32
}

// Menu is a list of labelled values shown over a stage.
type Menu struct {
	placement

	name    string
	Options []MenuOption
	Loc     bytecode.SourceLocation
}

func newMenu(name string, options []MenuOption, loc bytecode.SourceLocation) (*Menu, error) {
	if len(options) == 0 || len(options) > MaxMenuOptions {
		return nil, Errorf(loc, ErrInvalidMenu, "menu %s has %d options, want 1..%d", name, len(options), MaxMenuOptions)
	}
	seen := make(map[string]bool)
	for _, opt := range options {
		if err := checkString(opt.Label); err != nil {
			return nil, Errorf(loc, ErrInvalidMenu, "menu %s: label %v", name, err)
		}
		if seen[opt.Label] {
			return nil, Errorf(loc, ErrInvalidMenu, "menu %s: duplicate label %q", name, opt.Label)
		}
		seen[opt.Label] = true
	}
	return &Menu{name: name, Options: append([]MenuOption(nil), options...), Loc: loc}, nil
}

func (m *Menu) Name() string { return m.name }

func (m *Menu) Size() int { return IntSize + len(m.Options)*menuOptionSize }

func (m *Menu) Place(ns bytecode.Namespace, offset uint32) error {
	return m.place(m.name, ns, offset)
}

func (m *Menu) Bytes() ([]byte, error) {
	buf := make([]byte, 0, m.Size())
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Options)))
	for _, opt := range m.Options {
		buf = append(buf, fixedString(opt.Label)...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(opt.Value))
	}
	return buf, nil
}
