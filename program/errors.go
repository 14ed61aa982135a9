package program

import (
	"errors"
	"fmt"

	"github.com/chazu/gqc/pkg/bytecode"
)

// Construction-time errors. They are reported immediately with the source
// location of the offending declaration or statement.
var (
	ErrDuplicateDefinition = errors.New("duplicate definition")
	ErrBuiltinRedefinition = errors.New("cannot redefine builtin")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrInvalidValue        = errors.New("invalid value")
	ErrInvalidMenu         = errors.New("invalid menu")
	ErrDuplicateEvent      = errors.New("duplicate event")
	ErrUndefined           = errors.New("undefined")
)

// Error ties a sentinel error to a script location.
type Error struct {
	Loc bytecode.SourceLocation
	Err error
	Msg string
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Loc.Line == 0 {
		return msg
	}
	return e.Loc.String() + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a positioned error wrapping sentinel.
func Errorf(loc bytecode.SourceLocation, sentinel error, format string, args ...any) error {
	return &Error{Loc: loc, Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}
