package genfile

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by GetIdentifyingData once a source has no more
// variants. It is the expected end of data, not a failure.
var ErrExhausted = errors.New("source exhausted")

// ErrProtocolViolation is returned when probability data is read or ignored
// without a preceding identifying-data read.
var ErrProtocolViolation = errors.New("probability data requested before identifying data")

// ResourceError reports a file that is missing, unopenable or cannot be
// rewound.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %q: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// MalformedInputError reports a structurally invalid record. Text formats set
// Line (1-based) and Column; binary formats set Offset.
type MalformedInputError struct {
	Source string
	Line   int
	Offset int64
	Column int
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	where := fmt.Sprintf("offset %d", e.Offset)
	if e.Line > 0 {
		where = fmt.Sprintf("line %d, column %d", e.Line, e.Column)
	}
	msg := fmt.Sprintf("malformed input in %q at %s", e.Source, where)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// InconsistentSampleCountError is returned when sources that must agree on
// their number of samples do not.
type InconsistentSampleCountError struct {
	SourceIndex int
	Expected    uint32
	Got         uint32
}

func (e *InconsistentSampleCountError) Error() string {
	return fmt.Sprintf("source %d has %d samples, expected %d", e.SourceIndex, e.Got, e.Expected)
}

// MissingSNPError is returned by a Rack when one of its sources has no variant
// at a position the others share.
type MissingSNPError struct {
	SourceIndex int
	Position    GenomePosition
}

func (e *MissingSNPError) Error() string {
	return fmt.Sprintf("source %d has no variant at %s", e.SourceIndex, e.Position)
}

// SNPMismatchError is returned by a Rack when a source has a variant at the
// expected position whose identifiers or alleles differ.
type SNPMismatchError struct {
	SourceIndex int
	Position    GenomePosition
}

func (e *SNPMismatchError) Error() string {
	return fmt.Sprintf("source %d has a mismatching variant at %s", e.SourceIndex, e.Position)
}

// OperationUnsupportedError is returned when a source or sink is asked to do
// something its format cannot express.
type OperationUnsupportedError struct {
	Op string
}

func (e *OperationUnsupportedError) Error() string {
	return fmt.Sprintf("operation unsupported: %s", e.Op)
}
