package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunConsumed is returned when a Run is executed a second time
var ErrRunConsumed = errors.New("run already executed")

// Kind classifies why a run produced no audio
type Kind string

const (
	KindInvalidRequest   Kind = "InvalidRequest"
	KindEmptyInput       Kind = "EmptyInput"
	KindSynthesisFailure Kind = "SynthesisFailure"
	KindAssemblyFailure  Kind = "AssemblyFailure"
	KindEncodingFailure  Kind = "EncodingFailure"
)

// Error is the terminal failure of a run
type Error struct {
	Kind Kind
	Unit int    // 1-based unit number for synthesis failures, otherwise 0
	Text string // text of the failing unit
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindSynthesisFailure && e.Unit > 0 {
		return fmt.Sprintf("synthesis failed on line %d (%q): %v", e.Unit, e.Text, e.Err)
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a pipeline error, or "" for anything else
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
