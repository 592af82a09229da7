package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/lexiqai/narrator/internal/audio"
)

// ErrAssemblerFinished is returned when an Assembler is used after Finish
var ErrAssemblerFinished = errors.New("assembler already finished")

// Silence returns a pause of exactly ms milliseconds in the given format
func Silence(format audio.Format, ms int) (*audio.Segment, error) {
	if ms < 0 {
		return nil, fmt.Errorf("pause must not be negative, got %dms", ms)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return audio.Silence(format, time.Duration(ms)*time.Millisecond), nil
}

// Assembler builds the combined audio of one run. Units are appended in
// order and the pause goes between units, never after the last one.
// An Assembler owns its accumulator and must not be shared between runs.
type Assembler struct {
	pause    *audio.Segment
	combined *audio.Segment
	units    int
	pauses   int
	done     bool
}

// NewAssembler creates an empty accumulator in the pause's format
func NewAssembler(pause *audio.Segment) *Assembler {
	return &Assembler{
		pause:    pause,
		combined: audio.Empty(pause.Format),
	}
}

// Add appends the next unit, preceded by the pause unless it is the first
func (a *Assembler) Add(unit *audio.Segment) error {
	if a.done {
		return ErrAssemblerFinished
	}
	if unit == nil {
		return fmt.Errorf("unit %d has no audio", a.units+1)
	}
	if unit.Format != a.combined.Format {
		return fmt.Errorf("unit %d is %s, expected %s", a.units+1, unit.Format, a.combined.Format)
	}

	if a.units > 0 {
		if err := a.combined.Append(a.pause); err != nil {
			return err
		}
		a.pauses++
	}
	if err := a.combined.Append(unit); err != nil {
		return err
	}
	a.units++
	return nil
}

// Finish checks the interleaving and hands over the combined audio.
// The Assembler cannot be used afterwards.
func (a *Assembler) Finish() (*audio.Segment, error) {
	if a.done {
		return nil, ErrAssemblerFinished
	}
	a.done = true

	if a.units == 0 {
		return nil, errors.New("no units were added")
	}
	if a.pauses != a.units-1 {
		return nil, fmt.Errorf("%d units joined by %d pauses", a.units, a.pauses)
	}

	combined := a.combined
	a.combined = nil
	return combined, nil
}

// Assemble joins units with pause between consecutive units
func Assemble(units []*audio.Segment, pause *audio.Segment) (*audio.Segment, error) {
	if pause == nil {
		return nil, errors.New("pause segment is required")
	}
	a := NewAssembler(pause)
	for _, unit := range units {
		if err := a.Add(unit); err != nil {
			return nil, err
		}
	}
	return a.Finish()
}
