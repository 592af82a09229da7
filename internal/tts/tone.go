package tts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lexiqai/narrator/internal/audio"
	"github.com/lexiqai/narrator/internal/codec"
)

// ToneSynth is an offline backend that "speaks" a WAV sine tone whose length
// grows with the text. It makes the whole service runnable without network access.
type ToneSynth struct {
	format      audio.Format
	perRune     time.Duration
	minDuration time.Duration
	frequency   float64
}

// NewToneSynth creates a tone backend producing audio in format
func NewToneSynth(format audio.Format) *ToneSynth {
	return &ToneSynth{
		format:      format,
		perRune:     60 * time.Millisecond,
		minDuration: 200 * time.Millisecond,
		frequency:   440,
	}
}

// Duration returns how long the tone for text lasts
func (s *ToneSynth) Duration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * s.perRune
	if d < s.minDuration {
		return s.minDuration
	}
	return d
}

// Synthesize returns a WAV tone for text
func (s *ToneSynth) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrRejected)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return codec.EncodeWAV(audio.Tone(s.format, s.Duration(text), s.frequency, 0.3))
}
