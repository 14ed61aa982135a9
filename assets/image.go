package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

var (
	// ErrUnknownDithering is a dithering mode the pipeline does not have.
	ErrUnknownDithering = errors.New("unknown dithering")

	// ErrNoFrames means a source decoded to nothing.
	ErrNoFrames = errors.New("no frames")
)

// Dithering modes accepted by an animation's dithering option.
const (
	DitherNone           = "none"
	DitherBayer          = "bayer"
	DitherFloydSteinberg = "floyd_steinberg"
)

// sourceFrame is a decoded frame and how long it is shown, in hundredths
// of a second. Still images have zero delay.
type sourceFrame struct {
	img   image.Image
	delay int
}

// decodeSource decodes a GIF (all frames, composited) or any single-image
// format registered with the image package.
func decodeSource(data []byte) ([]sourceFrame, error) {
	if bytes.HasPrefix(data, []byte("GIF8")) {
		return decodeGIF(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return []sourceFrame{{img: img}}, nil
}

func decodeGIF(data []byte) ([]sourceFrame, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	frames := make([]sourceFrame, 0, len(g.Image))
	for i, p := range g.Image {
		var restore *image.RGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			restore = image.NewRGBA(bounds)
			draw.Draw(restore, bounds, canvas, bounds.Min, draw.Src)
		}
		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)

		snap := image.NewRGBA(bounds)
		draw.Draw(snap, bounds, canvas, bounds.Min, draw.Src)
		frames = append(frames, sourceFrame{img: snap, delay: g.Delay[i]})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = restore
		}
	}
	return frames, nil
}

// resample picks frames at rate frames per second from a timed sequence.
// Untimed sequences are used as they are.
func resample(frames []sourceFrame, rate int) []sourceFrame {
	total := 0
	for _, f := range frames {
		total += f.delay
	}
	if total == 0 || rate <= 0 {
		return frames
	}
	n := (total*rate + 99) / 100
	out := make([]sourceFrame, 0, n)
	src, end := 0, frames[0].delay
	for i := 0; i < n; i++ {
		t := i * 100 / rate
		for t >= end && src+1 < len(frames) {
			src++
			end += frames[src].delay
		}
		out = append(out, frames[src])
	}
	return out
}

// fit scales img to cover w x h, keeping its aspect ratio, and crops the
// center. The result is grayscale.
func fit(img image.Image, w, h int) *image.Gray {
	sb := img.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if sw == 0 || sh == 0 {
		return dst
	}
	// scale = max(w/sw, h/sh)
	scaledW, scaledH := w, sh*w/sw
	if scaledH < h {
		scaledW, scaledH = sw*h/sh, h
	}
	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.Draw(scaled, scaled.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, sb, draw.Over, nil)

	off := image.Pt((scaledW-w)/2, (scaledH-h)/2)
	draw.Draw(dst, dst.Bounds(), scaled, off, draw.Src)
	return dst
}

// bayer4 is the 4x4 ordered-dither threshold map, scaled to 0..255.
var bayer4 = [4][4]int{
	{0, 8, 2, 10},
	{12, 4, 14, 6},
	{3, 11, 1, 9},
	{15, 7, 13, 5},
}

// Dither converts a grayscale image to 1 bpp.
func Dither(g *image.Gray, mode string) (*Bitmap, error) {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := NewBitmap(w, h)
	lum := func(x, y int) int {
		return int(g.GrayAt(g.Bounds().Min.X+x, g.Bounds().Min.Y+y).Y)
	}
	switch mode {
	case DitherNone, "":
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(x, y, lum(x, y) >= 128)
			}
		}

	case DitherBayer:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				threshold := (bayer4[y%4][x%4]*2 + 1) * 256 / 32
				out.Set(x, y, lum(x, y) >= threshold)
			}
		}

	case DitherFloydSteinberg:
		errs := make([]int, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := lum(x, y) + errs[y*w+x]
				on := v >= 128
				out.Set(x, y, on)
				if on {
					v -= 255
				}
				spread := func(dx, dy, weight int) {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny < h {
						errs[ny*w+nx] += v * weight / 16
					}
				}
				spread(1, 0, 7)
				spread(-1, 1, 3)
				spread(0, 1, 5)
				spread(1, 1, 1)
			}
		}

	default:
		return nil, fmt.Errorf("%w %q (want %s, %s or %s)", ErrUnknownDithering, mode, DitherNone, DitherBayer, DitherFloydSteinberg)
	}
	return out, nil
}

// toGray is used for frames that are already the right size.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return g
}
