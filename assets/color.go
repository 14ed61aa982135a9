package assets

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/chazu/gqc/program"
)

// ErrInvalidColor is a color that is neither a known name nor #rrggbb.
var ErrInvalidColor = errors.New("invalid color")

// ParseColor accepts an SVG/CSS color name or a #rrggbb / #rgb hex value.
func ParseColor(s string) (program.Color, error) {
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return program.Color{R: c.R, G: c.G, B: c.B}, nil
	}
	if !strings.HasPrefix(s, "#") {
		return program.Color{}, ErrInvalidColor
	}
	digits := s[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) != 6 {
		return program.Color{}, ErrInvalidColor
	}
	rgb, err := hex.DecodeString(digits)
	if err != nil {
		return program.Color{}, ErrInvalidColor
	}
	return program.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}
