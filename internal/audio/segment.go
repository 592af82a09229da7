package audio

import (
	"fmt"
	"time"
)

// Format describes the sample layout of a Segment
type Format struct {
	SampleRate int // Samples per second per channel
	Channels   int // 1 for mono, 2 for stereo
}

// Validate checks that the format can hold audio
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// Segment is a decoded block of 16-bit PCM audio.
// Samples are interleaved when Channels is 2.
type Segment struct {
	Format  Format
	Samples []int16
}

// Empty returns a zero-length segment in the given format
func Empty(format Format) *Segment {
	return &Segment{Format: format}
}

// Silence returns a segment of digital silence lasting d.
// The frame count is d scaled to the sample rate and rounded to the nearest frame.
func Silence(format Format, d time.Duration) *Segment {
	if d <= 0 {
		return Empty(format)
	}
	frames := FramesFor(format.SampleRate, d)
	return &Segment{
		Format:  format,
		Samples: make([]int16, frames*format.Channels),
	}
}

// FramesFor returns the number of frames that cover d at the given rate
func FramesFor(sampleRate int, d time.Duration) int {
	// Integer math keeps the result deterministic for any d
	num := int64(d) * int64(sampleRate)
	den := int64(time.Second)
	return int((num + den/2) / den)
}

// Frames returns the number of sample frames in the segment
func (s *Segment) Frames() int {
	if s == nil || s.Format.Channels == 0 {
		return 0
	}
	return len(s.Samples) / s.Format.Channels
}

// Duration returns the playback length of the segment
func (s *Segment) Duration() time.Duration {
	if s == nil || s.Format.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(s.Frames()) * int64(time.Second) / int64(s.Format.SampleRate))
}

// IsEmpty reports whether the segment holds no samples
func (s *Segment) IsEmpty() bool {
	return s == nil || len(s.Samples) == 0
}

// Append copies other onto the end of s.
// Both segments must share the same format.
func (s *Segment) Append(other *Segment) error {
	if other == nil {
		return nil
	}
	if other.Format != s.Format {
		return fmt.Errorf("cannot append %s audio to %s segment", other.Format, s.Format)
	}
	s.Samples = append(s.Samples, other.Samples...)
	return nil
}

// Bytes returns the samples as 16-bit little-endian PCM
func (s *Segment) Bytes() []byte {
	return SamplesToPCM(s.Samples)
}

// FromPCM builds a segment from 16-bit little-endian PCM bytes
func FromPCM(pcmData []byte, format Format) (*Segment, error) {
	samples, err := PCMToSamples(pcmData)
	if err != nil {
		return nil, err
	}
	if len(samples)%format.Channels != 0 {
		return nil, fmt.Errorf("PCM data holds %d samples, not a whole number of %d-channel frames", len(samples), format.Channels)
	}
	return &Segment{Format: format, Samples: samples}, nil
}
