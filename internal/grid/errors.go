package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrBadShape is returned when a grid would have no rows, no columns,
	// or rows of differing length.
	ErrBadShape = errors.New("grid: invalid shape")

	// ErrNonFinite is returned when NaN or ±Inf is stored as a value.
	ErrNonFinite = errors.New("grid: non-finite value")

	// ErrNotFound wraps any failure to open the input source.
	ErrNotFound = errors.New("grid: input not found")

	// ErrMalformed matches every *ParseError via errors.Is.
	ErrMalformed = errors.New("grid: malformed input")

	// ErrMissingInOutput is returned by Write when asked to serialise a
	// grid that still holds Missing cells.
	ErrMissingInOutput = errors.New("grid: missing cell in output")
)

// Causes carried by ParseError.Err. A non-finite number such as "inf"
// is reported with ErrNonFinite.
var (
	ErrEmptyInput = errors.New("no data rows")
	ErrRaggedRow  = errors.New("ragged row")
	ErrNotNumeric = errors.New("not a number")
	ErrBadQuoting = errors.New("bad quoting")
)

// ParseError reports malformed input with enough context to locate it.
// Line and Field are 1-based; Field is 0 when the whole row is at fault.
type ParseError struct {
	Source string
	Line   int
	Field  int
	Text   string
	Err    error
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "<input>"
	}
	switch {
	case e.Line == 0:
		return fmt.Sprintf("malformed input %s: %v", src, e.Err)
	case e.Field == 0:
		return fmt.Sprintf("malformed input %s: line %d: %v", src, e.Line, e.Err)
	default:
		return fmt.Sprintf("malformed input %s: line %d, field %d (%q): %v", src, e.Line, e.Field, e.Text, e.Err)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is reports ParseError as an instance of ErrMalformed.
func (e *ParseError) Is(target error) bool { return target == ErrMalformed }
