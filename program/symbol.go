package program

import (
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
)

// Symbol is anything the linker lays out in an address space.
type Symbol interface {
	Name() string
	Addr() bytecode.Pointer
	Size() int
	Bytes() ([]byte, error)
	Place(ns bytecode.Namespace, offset uint32) error
}

type placement struct {
	addr bytecode.Pointer
}

// Addr returns the assigned address, or Null before placement.
func (p *placement) Addr() bytecode.Pointer { return p.addr }

func (p *placement) place(name string, ns bytecode.Namespace, offset uint32) error {
	if !p.addr.IsNull() {
		return fmt.Errorf("%w: %s at %s", bytecode.ErrAlreadyPlaced, name, p.addr)
	}
	ptr, err := bytecode.MakePointer(ns, offset)
	if err != nil {
		return fmt.Errorf("placing %s: %w", name, err)
	}
	p.addr = ptr
	return nil
}

// Padding fills a gap with a constant byte.
type Padding struct {
	placement
	name string
	size int
	fill byte
}

// NewPadding creates size bytes of fill.
func NewPadding(name string, size int, fill byte) *Padding {
	return &Padding{name: name, size: size, fill: fill}
}

func (p *Padding) Name() string { return p.name }
func (p *Padding) Size() int    { return p.size }

func (p *Padding) Place(ns bytecode.Namespace, offset uint32) error {
	return p.place(p.name, ns, offset)
}

func (p *Padding) Bytes() ([]byte, error) {
	buf := make([]byte, p.size)
	for i := range buf {
		buf[i] = p.fill
	}
	return buf, nil
}

// Mirror repeats another symbol's bytes at a second address.
type Mirror struct {
	placement
	name string
	of   Symbol
}

// NewMirror creates a copy of of under a new name.
func NewMirror(name string, of Symbol) *Mirror {
	return &Mirror{name: name, of: of}
}

func (m *Mirror) Name() string           { return m.name }
func (m *Mirror) Size() int              { return m.of.Size() }
func (m *Mirror) Bytes() ([]byte, error) { return m.of.Bytes() }
func (m *Mirror) Of() Symbol             { return m.of }

func (m *Mirror) Place(ns bytecode.Namespace, offset uint32) error {
	return m.place(m.name, ns, offset)
}
