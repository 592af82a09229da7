package pipeline

// State is the position of a run in its lifecycle. States are only entered
// moving forward and a run ends in EmptyInput, Done or Failed.
type State int

const (
	StateIdle State = iota
	StateSplitting
	StateSynthesizing
	StateAssembling
	StateEncoding
	StateEmptyInput
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSplitting:
		return "splitting"
	case StateSynthesizing:
		return "synthesizing"
	case StateAssembling:
		return "assembling"
	case StateEncoding:
		return "encoding"
	case StateEmptyInput:
		return "empty_input"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateEmptyInput || s == StateDone || s == StateFailed
}
