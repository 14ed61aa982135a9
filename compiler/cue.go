package compiler

import (
	"errors"
	"strconv"

	"github.com/chazu/gqc/assets"
	"github.com/chazu/gqc/program"
)

// ErrCueFrame marks a malformed frame in a light-cue file.
var ErrCueFrame = errors.New("invalid cue frame")

// BuildCue resolves the colors of a parsed light-cue file and returns its
// frames. Frame colors are looked up in the file's color table first, then
// as color names or #rrggbb.
func BuildCue(filename string, cf *CueFile) ([]program.CueFrameSpec, error) {
	table := make(map[string]program.Color, len(cf.Colors))
	for _, def := range cf.Colors {
		loc := location(filename, def.Pos)
		if _, ok := table[def.Name]; ok {
			return nil, program.Errorf(loc, program.ErrDuplicateDefinition, "color %s", def.Name)
		}
		c, err := assets.ParseColor(def.Value)
		if err != nil {
			return nil, program.Errorf(loc, assets.ErrInvalidColor, "%s := %q", def.Name, def.Value)
		}
		table[def.Name] = c
	}

	specs := make([]program.CueFrameSpec, 0, len(cf.Frames))
	for i, fr := range cf.Frames {
		loc := location(filename, fr.Pos)
		var (
			spec                         program.CueFrameSpec
			haveDur, haveTrans, haveCols bool
		)
		for _, p := range fr.Params {
			ploc := location(filename, p.Pos)
			switch {
			case p.Duration != nil:
				if haveDur {
					return nil, program.Errorf(ploc, ErrCueFrame, "frame %d: duplicate duration", i)
				}
				haveDur = true
				d, err := strconv.ParseUint(*p.Duration, 0, 16)
				if err != nil {
					return nil, program.Errorf(ploc, ErrCueFrame, "frame %d: duration %s out of range", i, *p.Duration)
				}
				spec.Duration = uint16(d)

			case p.Transition != nil:
				if haveTrans {
					return nil, program.Errorf(ploc, ErrCueFrame, "frame %d: duplicate transition", i)
				}
				haveTrans = true
				t, err := program.ParseTransition(*p.Transition)
				if err != nil {
					return nil, program.Errorf(ploc, ErrCueFrame, "frame %d: %v", i, err)
				}
				spec.Transition = t

			default:
				if haveCols {
					return nil, program.Errorf(ploc, ErrCueFrame, "frame %d: duplicate colors", i)
				}
				haveCols = true
				if len(p.Colors) != program.CueColorCount {
					return nil, program.Errorf(ploc, ErrCueFrame, "frame %d has %d colors, want %d", i, len(p.Colors), program.CueColorCount)
				}
				for j, name := range p.Colors {
					c, ok := table[name]
					if !ok {
						var err error
						if c, err = assets.ParseColor(name); err != nil {
							return nil, program.Errorf(ploc, assets.ErrInvalidColor, "frame %d: unresolvable color %s", i, name)
						}
					}
					spec.Colors[j] = c
				}
			}
		}
		if !haveDur {
			return nil, program.Errorf(loc, ErrCueFrame, "frame %d has no duration", i)
		}
		if !haveCols {
			return nil, program.Errorf(loc, ErrCueFrame, "frame %d has no colors", i)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
