// Package program holds the symbols of one cartridge: variables, stages and
// their event code, animations, light cues, menus and the game header.
//
// All symbols are owned by a Context. Each symbol is placed exactly once by
// the linker and encodes itself with Bytes once every address it refers to
// is known.
package program
