package program

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
)

// CueColorCount is the number of LEDs a cue frame drives.
const CueColorCount = 5

const (
	CueRecordSize      = 2 + 2 + bytecode.PointerSize
	CueFrameRecordSize = 2 + 1 + 3*CueColorCount
)

// Color is an RGB888 LED color.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Transition controls how the firmware moves into a cue frame.
type Transition uint8

const (
	TransitionNone   Transition = 0x00
	TransitionSmooth Transition = 0x01
)

// ParseTransition maps the cue-file spelling to a Transition.
func ParseTransition(s string) (Transition, error) {
	switch s {
	case "", "none":
		return TransitionNone, nil
	case "smooth":
		return TransitionSmooth, nil
	}
	return TransitionNone, fmt.Errorf("%w: unknown transition %q", ErrInvalidValue, s)
}

// CueFrameSpec is one parsed cue frame.
type CueFrameSpec struct {
	Duration   uint16
	Transition Transition
	Colors     [CueColorCount]Color
}

// LightCue is an LED sequence.
type LightCue struct {
	placement

	name   string
	Flags  uint16
	Frames []*CueFrame
	Loc    bytecode.SourceLocation
}

func newLightCue(name string, specs []CueFrameSpec, loc bytecode.SourceLocation) (*LightCue, error) {
	if len(specs) == 0 {
		return nil, Errorf(loc, ErrInvalidValue, "lightcue %s has no frames", name)
	}
	if len(specs) > 0xFFFF {
		return nil, Errorf(loc, ErrInvalidValue, "lightcue %s has %d frames", name, len(specs))
	}
	q := &LightCue{name: name, Loc: loc}
	for i, spec := range specs {
		q.Frames = append(q.Frames, &CueFrame{cue: q, Index: i, CueFrameSpec: spec})
	}
	return q, nil
}

func (q *LightCue) Name() string { return q.name }

func (q *LightCue) Size() int { return CueRecordSize }

func (q *LightCue) Place(ns bytecode.Namespace, offset uint32) error {
	return q.place(q.name, ns, offset)
}

func (q *LightCue) Bytes() ([]byte, error) {
	first := q.Frames[0].Addr()
	if first.IsNull() {
		return nil, fmt.Errorf("%w: lightcue %s frames not placed", bytecode.ErrUnresolved, q.name)
	}
	buf := make([]byte, CueRecordSize)
	binary.LittleEndian.PutUint16(buf[0:], uint16(len(q.Frames)))
	binary.LittleEndian.PutUint16(buf[2:], q.Flags)
	binary.LittleEndian.PutUint32(buf[4:], uint32(first))
	return buf, nil
}

// CueFrame is one step of a light cue.
type CueFrame struct {
	placement
	CueFrameSpec

	cue   *LightCue
	Index int
}

func (f *CueFrame) Name() string { return fmt.Sprintf("%s.frame%d", f.cue.name, f.Index) }

func (f *CueFrame) Size() int { return CueFrameRecordSize }

func (f *CueFrame) Place(ns bytecode.Namespace, offset uint32) error {
	return f.place(f.Name(), ns, offset)
}

func (f *CueFrame) Bytes() ([]byte, error) {
	buf := make([]byte, CueFrameRecordSize)
	binary.LittleEndian.PutUint16(buf[0:], f.Duration)
	buf[2] = byte(f.Transition)
	for i, c := range f.Colors {
		buf[3+3*i] = c.R
		buf[4+3*i] = c.G
		buf[5+3*i] = c.B
	}
	return buf, nil
}
