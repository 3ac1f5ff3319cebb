// Package validate checks that formatted output is still parseable
// JavaScript. The check is advisory: a failure never discards output.
package validate

import (
	goerrors "errors"
	"fmt"
	"os"

	"github.com/dop251/goja/parser"

	"github.com/tomyedwab/jsprettify/errors"
)

// SyntaxError describes the first parse error found in a file
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Syntax parses source and returns a *SyntaxError when it is not valid
// JavaScript. name is only used in messages.
func Syntax(name, source string) error {
	if _, err := parser.ParseFile(nil, name, source, 0); err != nil {
		return toSyntaxError(name, err)
	}
	return nil
}

// File reads path and checks its syntax
func File(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, err, "failed to read %s for syntax check", path)
	}
	return Syntax(path, string(data))
}

func toSyntaxError(name string, err error) *SyntaxError {
	var list parser.ErrorList
	if goerrors.As(err, &list) && len(list) > 0 {
		first := list[0]
		return &SyntaxError{
			File:    name,
			Line:    first.Position.Line,
			Column:  first.Position.Column,
			Message: first.Message,
		}
	}
	return &SyntaxError{File: name, Message: err.Error()}
}
