// Package manifest handles gqc.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest looked for in a project directory.
const FileName = "gqc.toml"

// ErrNoEntry means the manifest names no script to build.
var ErrNoEntry = errors.New("manifest has no [source] entry")

// Manifest represents a gqc.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	Assets  AssetDirs   `toml:"assets"`
	Build   BuildConfig `toml:"build"`

	// Dir is the directory containing the gqc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source names the script to compile.
type Source struct {
	Entry string `toml:"entry"`
}

// AssetDirs locates animation and light-cue files.
type AssetDirs struct {
	Animations string `toml:"animations"`
	Cues       string `toml:"cues"`
}

// BuildConfig configures build outputs. Relative paths are under Dir.
type BuildConfig struct {
	Dir       string `toml:"dir"`
	Output    string `toml:"output"`
	Map       string `toml:"map"`
	Listing   string `toml:"listing"`
	GoPackage string `toml:"go-package"`
	NoCache   bool   `toml:"no-cache"`
}

// Load parses a gqc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Name == "" {
		m.Project.Name = filepath.Base(m.Dir)
	}
	if m.Source.Entry == "" {
		m.Source.Entry = "main.gqc"
	}
	if m.Assets.Animations == "" {
		m.Assets.Animations = "animations"
	}
	if m.Assets.Cues == "" {
		m.Assets.Cues = "lightcues"
	}
	if m.Build.Dir == "" {
		m.Build.Dir = "build"
	}
	if m.Build.Output == "" {
		m.Build.Output = m.Project.Name + ".gqcart"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a gqc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the absolute path of the entry script.
func (m *Manifest) EntryPath() string { return m.abs(m.Source.Entry) }

// AnimationDir returns the absolute animation directory.
func (m *Manifest) AnimationDir() string { return m.abs(m.Assets.Animations) }

// CueDir returns the absolute light-cue directory.
func (m *Manifest) CueDir() string { return m.abs(m.Assets.Cues) }

// BuildDir returns the absolute build directory.
func (m *Manifest) BuildDir() string { return m.abs(m.Build.Dir) }

// CacheDir returns the frame cache directory, or "" when caching is off.
func (m *Manifest) CacheDir() string {
	if m.Build.NoCache {
		return ""
	}
	return filepath.Join(m.BuildDir(), ".cache")
}

// buildPath places a build output. Bare file names go in the build
// directory; anything else is relative to the project.
func (m *Manifest) buildPath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	if filepath.Base(p) == p {
		return filepath.Join(m.BuildDir(), p)
	}
	return filepath.Join(m.Dir, p)
}

// OutputPath returns where the cartridge image is written.
func (m *Manifest) OutputPath() string { return m.buildPath(m.Build.Output) }

// MapPath returns where the linker map is written, or "".
func (m *Manifest) MapPath() string { return m.buildPath(m.Build.Map) }

// ListingPath returns where the instruction listing is written, or "".
func (m *Manifest) ListingPath() string { return m.buildPath(m.Build.Listing) }

// GoExportPath returns where the Go export is written, or "" when
// [build] go-package is unset. The file is named after the package.
func (m *Manifest) GoExportPath() string {
	if m.Build.GoPackage == "" {
		return ""
	}
	return filepath.Join(m.BuildDir(), m.Build.GoPackage, m.Build.GoPackage+".go")
}

// Validate checks that the entry script exists.
func (m *Manifest) Validate() error {
	if m.Source.Entry == "" {
		return ErrNoEntry
	}
	if _, err := os.Stat(m.EntryPath()); err != nil {
		return fmt.Errorf("entry %s: %w", m.Source.Entry, err)
	}
	return nil
}
