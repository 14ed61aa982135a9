package assets

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/gqc/program"
)

var log = commonlog.GetLogger("gqc.assets")

// frameExts are the file types picked up from an animation directory.
var frameExts = map[string]bool{".gif": true, ".png": true, ".bmp": true}

// Loader reads animation and light-cue sources from the project tree.
type Loader struct {
	// AnimationDir is where animation sources are resolved.
	AnimationDir string

	// CueDir is where .gqcue files are resolved.
	CueDir string

	// Cache, when set, holds previously encoded animations.
	Cache *Cache
}

// Frames converts an animation source, a single image file or a directory
// of frame images sorted by name, into encoded frames.
func (l *Loader) Frames(opts program.AnimationOptions) ([]program.EncodedFrame, error) {
	opts = opts.WithDefaults()
	path := filepath.Join(l.AnimationDir, opts.Source)
	sources, err := readSources(path)
	if err != nil {
		return nil, err
	}

	key := MakeKey(sources, opts)
	if l.Cache != nil {
		frames, ok, err := l.Cache.Get(key)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Debugf("%s: cache hit %s", opts.Source, key)
			return frames, nil
		}
	}

	frames, err := Convert(sources, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("%s: %d frames at %d fps, %s dithering", opts.Source, len(frames), opts.FrameRate, opts.Dithering)

	if l.Cache != nil {
		if err := l.Cache.Put(key, frames); err != nil {
			log.Warningf("%s: not cached: %v", opts.Source, err)
		}
	}
	return frames, nil
}

// CueSource reads a light-cue file.
func (l *Loader) CueSource(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.CueDir, path))
}

func readSources(path string) ([][]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return [][]byte{data}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFrames)
	}
	sort.Strings(names)
	sources := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		sources = append(sources, data)
	}
	return sources, nil
}

// Convert decodes, resamples, scales, dithers and encodes source images.
// A directory of stills plays one file per frame; a GIF is resampled to
// the animation's frame rate.
func Convert(sources [][]byte, opts program.AnimationOptions) ([]program.EncodedFrame, error) {
	opts = opts.WithDefaults()
	var decoded []sourceFrame
	for i, src := range sources {
		frames, err := decodeSource(src)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		decoded = append(decoded, frames...)
	}
	if len(decoded) == 0 {
		return nil, ErrNoFrames
	}
	decoded = resample(decoded, opts.FrameRate)

	out := make([]program.EncodedFrame, 0, len(decoded))
	for _, f := range decoded {
		var g *image.Gray
		if b := f.img.Bounds(); b.Dx() == opts.Width && b.Dy() == opts.Height {
			g = toGray(f.img)
		} else {
			g = fit(f.img, opts.Width, opts.Height)
		}
		bm, err := Dither(g, opts.Dithering)
		if err != nil {
			return nil, err
		}
		out = append(out, Encode(bm))
	}
	return out, nil
}
