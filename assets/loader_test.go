package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"github.com/chazu/gqc/program"
)

// halfLit is a w x h image whose left half is white.
func halfLit(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			img.SetGray(x, y, color.Gray{Y: 0xFF})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func gifBytes(t *testing.T, frames int, delay int) []byte {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		p := image.NewPaletted(image.Rect(0, 0, 8, 8), pal)
		p.SetColorIndex(i%8, 0, 1)
		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, delay)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDitherNone(t *testing.T) {
	bm, err := Dither(halfLit(8, 2), DitherNone)
	be.Err(t, err, nil)
	be.Equal(t, Uncompressed(bm), []byte{0xF0, 0xF0})
}

func TestDitherMidGray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range gray.Pix {
		gray.Pix[i] = 0x80
	}
	for _, mode := range []string{DitherBayer, DitherFloydSteinberg} {
		t.Run(mode, func(t *testing.T) {
			bm, err := Dither(gray, mode)
			be.Err(t, err, nil)
			lit := 0
			for _, p := range bm.Pix {
				if p {
					lit++
				}
			}
			// Roughly half the pixels are lit.
			be.True(t, lit > 256/4 && lit < 256*3/4)
		})
	}
}

func TestDitherUnknown(t *testing.T) {
	_, err := Dither(halfLit(4, 4), "sierra")
	be.Err(t, err, ErrUnknownDithering)
}

func TestConvertScalesToSize(t *testing.T) {
	src := pngBytes(t, halfLit(64, 32))
	frames, err := Convert([][]byte{src}, program.AnimationOptions{Width: 16, Height: 16})
	be.Err(t, err, nil)
	be.Equal(t, len(frames), 1)
	be.Equal(t, frames[0].Width, 16)
	be.Equal(t, frames[0].Height, 16)
}

func TestConvertResamplesGIF(t *testing.T) {
	// Four frames of 0.5 s each at 4 fps is 8 output frames.
	src := gifBytes(t, 4, 50)
	frames, err := Convert([][]byte{src}, program.AnimationOptions{FrameRate: 4, Width: 8, Height: 8})
	be.Err(t, err, nil)
	be.Equal(t, len(frames), 8)
	be.Equal(t, frames[0].Data, frames[1].Data)
}

func TestResample(t *testing.T) {
	a := sourceFrame{delay: 10}
	b := sourceFrame{delay: 30}
	got := resample([]sourceFrame{a, b}, 50)
	// 0.4 s at 50 fps is 20 frames; a covers the first 0.1 s.
	be.Equal(t, len(got), 20)
	be.Equal(t, got[4].delay, 10)
	be.Equal(t, got[5].delay, 30)

	still := []sourceFrame{{}, {}}
	be.Equal(t, len(resample(still, 25)), 2)
}

func TestLoaderDirectoryAndCache(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "anims", "walk")
	be.Err(t, os.MkdirAll(dir, 0o755), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "frame002.png"), pngBytes(t, halfLit(8, 8)), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "frame001.png"), pngBytes(t, image.NewGray(image.Rect(0, 0, 8, 8))), 0o644), nil)
	be.Err(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644), nil)

	l := &Loader{AnimationDir: filepath.Join(root, "anims"), Cache: NewCache(filepath.Join(root, "cache"))}
	opts := program.AnimationOptions{Source: "walk", Width: 8, Height: 8}
	frames, err := l.Frames(opts)
	be.Err(t, err, nil)
	be.Equal(t, len(frames), 2)
	// frame001 is blank and sorts first.
	be.Equal(t, frames[0].Data, []byte{0xF0, 0xF0, 0xF0, 0xF0})

	entries, err := os.ReadDir(filepath.Join(root, "cache"))
	be.Err(t, err, nil)
	be.Equal(t, len(entries), 1)

	again, err := l.Frames(opts)
	be.Err(t, err, nil)
	be.Equal(t, again, frames)
}

func TestLoaderMissingSource(t *testing.T) {
	l := &Loader{AnimationDir: t.TempDir()}
	_, err := l.Frames(program.AnimationOptions{Source: "nope.gif"})
	be.Err(t, err, os.ErrNotExist)
}

func TestCacheKeyDependsOnOptions(t *testing.T) {
	src := [][]byte{[]byte("pixels")}
	a := MakeKey(src, program.AnimationOptions{Dithering: "none"})
	b := MakeKey(src, program.AnimationOptions{Dithering: "bayer"})
	be.True(t, a != b)
	be.Equal(t, a, MakeKey(src, program.AnimationOptions{Dithering: "none"}))
}

func TestCacheMissAndStale(t *testing.T) {
	c := NewCache(t.TempDir())
	k := MakeKey(nil, program.AnimationOptions{})
	_, ok, err := c.Get(k)
	be.Err(t, err, nil)
	be.True(t, !ok)

	be.Err(t, os.WriteFile(c.path(k), []byte("not cbor"), 0o644), nil)
	_, ok, err = c.Get(k)
	be.Err(t, err, nil)
	be.True(t, !ok)

	want := []program.EncodedFrame{{Encoding: program.EncodingRLE4, Width: 1, Height: 1, Data: []byte{0x00}}}
	be.Err(t, c.Put(k, want), nil)
	got, ok, err := c.Get(k)
	be.Err(t, err, nil)
	be.True(t, ok)
	be.Equal(t, got, want)
}
