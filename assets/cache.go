package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/gqc/program"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("assets: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// cacheVersion changes whenever the encoder output changes.
const cacheVersion = 1

// Key identifies one conversion: source bytes plus every option that
// affects the output.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// MakeKey digests the source files and options.
func MakeKey(sources [][]byte, opts program.AnimationOptions) Key {
	h := sha256.New()
	fmt.Fprintf(h, "v%d|%d|%s|%dx%d|", cacheVersion, opts.FrameRate, opts.Dithering, opts.Width, opts.Height)
	for _, src := range sources {
		fmt.Fprintf(h, "%d:", len(src))
		h.Write(src)
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// cacheEntry is the on-disk form of a converted animation.
type cacheEntry struct {
	Version int                    `cbor:"1,keyasint"`
	Frames  []program.EncodedFrame `cbor:"2,keyasint"`
}

// Cache stores encoded frames as CBOR files in a directory.
type Cache struct {
	Dir string
}

// NewCache returns a cache rooted at dir. The directory is created on the
// first Put.
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) path(k Key) string {
	return filepath.Join(c.Dir, k.String()+".cbor")
}

// Get returns the cached frames for k. A missing or stale entry is a miss,
// not an error.
func (c *Cache) Get(k Key) ([]program.EncodedFrame, bool, error) {
	data, err := os.ReadFile(c.path(k))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e cacheEntry
	if err := cbor.Unmarshal(data, &e); err != nil {
		log.Warningf("discarding unreadable cache entry %s: %v", k, err)
		return nil, false, nil
	}
	if e.Version != cacheVersion {
		return nil, false, nil
	}
	return e.Frames, true, nil
}

// Put stores frames under k.
func (c *Cache) Put(k Key, frames []program.EncodedFrame) error {
	data, err := cborEncMode.Marshal(&cacheEntry{Version: cacheVersion, Frames: frames})
	if err != nil {
		return fmt.Errorf("assets: marshal cache entry: %w", err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	tmp := c.path(k) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(k))
}
