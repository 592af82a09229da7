package audio

import (
	"math"
	"time"
)

// Tone returns a sine tone of the given frequency lasting d.
// Amplitude is a fraction of full scale in the range (0, 1].
func Tone(format Format, d time.Duration, frequency, amplitude float64) *Segment {
	frames := FramesFor(format.SampleRate, d)
	samples := make([]int16, frames*format.Channels)
	peak := amplitude * math.MaxInt16

	for i := 0; i < frames; i++ {
		t := float64(i) / float64(format.SampleRate)
		value := int16(peak * math.Sin(2*math.Pi*frequency*t))
		for ch := 0; ch < format.Channels; ch++ {
			samples[i*format.Channels+ch] = value
		}
	}

	return &Segment{Format: format, Samples: samples}
}
