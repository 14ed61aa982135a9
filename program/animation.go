package program

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
)

// FrameEncoding is the bpp/compression byte of a frame record.
type FrameEncoding uint8

const (
	EncodingUncompressed FrameEncoding = 0x01
	EncodingRLE4         FrameEncoding = 0x41
)

func (e FrameEncoding) String() string {
	switch e {
	case EncodingUncompressed:
		return "1bpp"
	case EncodingRLE4:
		return "rle4"
	}
	return fmt.Sprintf("encoding(0x%02X)", uint8(e))
}

// EncodedFrame is one frame as produced by the asset pipeline.
type EncodedFrame struct {
	Encoding FrameEncoding
	Width    int
	Height   int
	Data     []byte
}

// AnimationOptions are the per-animation declaration options.
type AnimationOptions struct {
	Source    string
	FrameRate int
	Dithering string
	Width     int
	Height    int
}

const (
	DefaultFrameRate = 25
	DefaultDithering = "none"
	DefaultWidth     = 128
	DefaultHeight    = 128

	// TicksPerSecond is the firmware animation clock.
	TicksPerSecond = 100

	AnimationRecordSize = 2 + 2 + 2 + 2 + 1 + 1 + bytecode.PointerSize
	FrameRecordSize     = 1 + bytecode.PointerSize + 4
)

// WithDefaults fills unset options.
func (o AnimationOptions) WithDefaults() AnimationOptions {
	if o.FrameRate == 0 {
		o.FrameRate = DefaultFrameRate
	}
	if o.Dithering == "" {
		o.Dithering = DefaultDithering
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	return o
}

// TicksPerFrame converts the frame rate to firmware ticks.
func (o AnimationOptions) TicksPerFrame() int {
	return TicksPerSecond / o.FrameRate
}

// Animation is a background animation made of frames.
type Animation struct {
	placement

	name          string
	ID            uint16
	Source        string
	TicksPerFrame uint16
	Flags         uint16
	Width         uint8
	Height        uint8
	Frames        []*Frame
	Loc           bytecode.SourceLocation
}

func newAnimation(name string, id uint16, frames []EncodedFrame, opts AnimationOptions, loc bytecode.SourceLocation) (*Animation, error) {
	opts = opts.WithDefaults()
	if opts.FrameRate < 1 || opts.FrameRate > TicksPerSecond {
		return nil, Errorf(loc, ErrInvalidValue, "animation %s: frame_rate %d out of range 1..%d", name, opts.FrameRate, TicksPerSecond)
	}
	if opts.Width < 1 || opts.Width > 0xFF || opts.Height < 1 || opts.Height > 0xFF {
		return nil, Errorf(loc, ErrInvalidValue, "animation %s: size %dx%d out of range", name, opts.Width, opts.Height)
	}
	if len(frames) == 0 {
		return nil, Errorf(loc, ErrInvalidValue, "animation %s has no frames", name)
	}
	if len(frames) > 0xFFFF {
		return nil, Errorf(loc, ErrInvalidValue, "animation %s has %d frames", name, len(frames))
	}

	a := &Animation{
		name:          name,
		ID:            id,
		Source:        opts.Source,
		TicksPerFrame: uint16(opts.TicksPerFrame()),
		Width:         uint8(opts.Width),
		Height:        uint8(opts.Height),
		Loc:           loc,
	}
	for i, f := range frames {
		if f.Width != opts.Width || f.Height != opts.Height {
			return nil, Errorf(loc, ErrInvalidValue, "animation %s frame %d is %dx%d, want %dx%d",
				name, i, f.Width, f.Height, opts.Width, opts.Height)
		}
		if f.Encoding != EncodingUncompressed && f.Encoding != EncodingRLE4 {
			return nil, Errorf(loc, ErrInvalidValue, "animation %s frame %d: unknown %s", name, i, f.Encoding)
		}
		if err := checkFrameData(f); err != nil {
			return nil, Errorf(loc, ErrInvalidValue, "animation %s frame %d: %v", name, i, err)
		}
		frame := &Frame{anim: a, Index: i, Encoding: f.Encoding}
		frame.Data = &FrameData{frame: frame, data: f.Data}
		a.Frames = append(a.Frames, frame)
	}
	return a, nil
}

// checkFrameData reports whether the encoded data covers exactly the
// frame's pixels.
func checkFrameData(f EncodedFrame) error {
	switch f.Encoding {
	case EncodingUncompressed:
		if want := (f.Width + 7) / 8 * f.Height; len(f.Data) != want {
			return fmt.Errorf("%s data is %d bytes, want %d", f.Encoding, len(f.Data), want)
		}
	case EncodingRLE4:
		pixels := 0
		for _, b := range f.Data {
			pixels += int(b>>4) + 1
		}
		if pixels != f.Width*f.Height {
			return fmt.Errorf("%s data covers %d pixels, want %d", f.Encoding, pixels, f.Width*f.Height)
		}
	}
	return nil
}

func (a *Animation) Name() string { return a.name }

func (a *Animation) Size() int { return AnimationRecordSize }

func (a *Animation) Place(ns bytecode.Namespace, offset uint32) error {
	return a.place(a.name, ns, offset)
}

// Bytes encodes the animation record; it points at the first frame.
func (a *Animation) Bytes() ([]byte, error) {
	first := a.Frames[0].Addr()
	if first.IsNull() {
		return nil, fmt.Errorf("%w: animation %s frames not placed", bytecode.ErrUnresolved, a.name)
	}
	buf := make([]byte, AnimationRecordSize)
	binary.LittleEndian.PutUint16(buf[0:], a.ID)
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(a.Frames)))
	binary.LittleEndian.PutUint16(buf[4:], a.TicksPerFrame)
	binary.LittleEndian.PutUint16(buf[6:], a.Flags)
	buf[8] = a.Width
	buf[9] = a.Height
	binary.LittleEndian.PutUint32(buf[10:], uint32(first))
	return buf, nil
}

// Frame is one frame record; its pixels live in a separate FrameData.
type Frame struct {
	placement

	anim     *Animation
	Index    int
	Encoding FrameEncoding
	Data     *FrameData
}

func (f *Frame) Name() string { return fmt.Sprintf("%s.frame%d", f.anim.name, f.Index) }

func (f *Frame) Size() int { return FrameRecordSize }

func (f *Frame) Place(ns bytecode.Namespace, offset uint32) error {
	return f.place(f.Name(), ns, offset)
}

func (f *Frame) Bytes() ([]byte, error) {
	data := f.Data.Addr()
	if data.IsNull() {
		return nil, fmt.Errorf("%w: %s data not placed", bytecode.ErrUnresolved, f.Name())
	}
	buf := make([]byte, FrameRecordSize)
	buf[0] = byte(f.Encoding)
	binary.LittleEndian.PutUint32(buf[1:], uint32(data))
	binary.LittleEndian.PutUint32(buf[5:], uint32(len(f.Data.data)))
	return buf, nil
}

// FrameData is the raw encoded pixel payload of a frame.
type FrameData struct {
	placement

	frame *Frame
	data  []byte
}

func (d *FrameData) Name() string { return d.frame.Name() + ".data" }

func (d *FrameData) Size() int { return len(d.data) }

func (d *FrameData) Place(ns bytecode.Namespace, offset uint32) error {
	return d.place(d.Name(), ns, offset)
}

func (d *FrameData) Bytes() ([]byte, error) { return d.data, nil }
