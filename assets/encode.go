// Package assets turns animation sources into encoded 1 bpp frames and
// resolves light-cue colors.
package assets

import (
	"github.com/chazu/gqc/program"
)

// Bitmap is a 1 bpp image; true is a lit pixel.
type Bitmap struct {
	Width, Height int
	Pix           []bool // row-major
}

// NewBitmap returns an all-dark bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// At reports whether the pixel at x, y is lit.
func (b *Bitmap) At(x, y int) bool { return b.Pix[y*b.Width+x] }

// Set lights or clears the pixel at x, y.
func (b *Bitmap) Set(x, y int, on bool) { b.Pix[y*b.Width+x] = on }

// rleMaxRun is the longest run one RLE4 byte can hold.
const rleMaxRun = 16

// Uncompressed packs pixels MSB first; every row starts on a byte boundary.
func Uncompressed(b *Bitmap) []byte {
	stride := (b.Width + 7) / 8
	out := make([]byte, stride*b.Height)
	for y := 0; y < b.Height; y++ {
		row := out[y*stride:]
		for x := 0; x < b.Width; x++ {
			if b.At(x, y) {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return out
}

// RLE4 encodes runs over the whole frame, ignoring rows. Each byte holds
// the run length minus one in the high nibble and the pixel in bit 0.
func RLE4(b *Bitmap) []byte {
	if len(b.Pix) == 0 {
		return nil
	}
	var out []byte
	val := b.Pix[0]
	run := 1
	flush := func() {
		var v byte
		if val {
			v = 1
		}
		out = append(out, byte(run-1)<<4|v)
	}
	for _, p := range b.Pix[1:] {
		if p == val && run < rleMaxRun {
			run++
			continue
		}
		flush()
		val, run = p, 1
	}
	flush()
	return out
}

// Encode picks the smaller of the uncompressed and RLE4 encodings. RLE4
// wins ties.
func Encode(b *Bitmap) program.EncodedFrame {
	raw := Uncompressed(b)
	rle := RLE4(b)
	f := program.EncodedFrame{Width: b.Width, Height: b.Height}
	if len(rle) <= len(raw) {
		f.Encoding, f.Data = program.EncodingRLE4, rle
	} else {
		f.Encoding, f.Data = program.EncodingUncompressed, raw
	}
	return f
}
