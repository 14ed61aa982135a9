// This file checks generated Go source in memory using go/parser and go/types.
package codegen

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// ValidationError is a Go error in generated source.
type ValidationError struct {
	Line     int
	Column   int
	Function string // enclosing function, empty at package level
	Message  string
}

// CodeValidator parses and type-checks generated source.
type CodeValidator struct {
	fset     *token.FileSet
	filename string
}

// NewCodeValidator creates a validator; filename only appears in messages.
func NewCodeValidator(filename string) *CodeValidator {
	return &CodeValidator{filename: filename}
}

// Validate returns every syntax or type error in source.
func (cv *CodeValidator) Validate(source string) []ValidationError {
	cv.fset = token.NewFileSet()

	file, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors)
	if err != nil {
		return []ValidationError{{Line: 1, Column: 1, Message: err.Error()}}
	}

	funcs := cv.functionLines(file)
	var errs []ValidationError
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			typeErr, ok := err.(types.Error)
			if !ok {
				return
			}
			pos := cv.fset.Position(typeErr.Pos)
			errs = append(errs, ValidationError{
				Line:     pos.Line,
				Column:   pos.Column,
				Function: funcs[pos.Line],
				Message:  typeErr.Msg,
			})
		},
	}
	_, _ = conf.Check(file.Name.Name, cv.fset, []*ast.File{file}, nil)
	return errs
}

// functionLines maps each source line inside a function to its name.
func (cv *CodeValidator) functionLines(file *ast.File) map[int]string {
	lines := make(map[int]string)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		start := cv.fset.Position(fn.Pos()).Line
		end := cv.fset.Position(fn.End()).Line
		for line := start; line <= end; line++ {
			lines[line] = fn.Name.Name
		}
	}
	return lines
}

// FormatValidationErrors renders errors one per line.
func FormatValidationErrors(errors []ValidationError, filename string) string {
	if len(errors) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, err := range errors {
		sb.WriteString("  ")
		sb.WriteString(filename)
		if err.Line > 0 {
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(err.Line))
		}
		sb.WriteString(": ")
		if err.Function != "" {
			sb.WriteString(err.Function)
			sb.WriteString(": ")
		}
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}
