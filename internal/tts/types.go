package tts

import (
	"context"
	"errors"
)

// ErrRejected marks input the backend refused (empty text, unsupported
// language, characters it cannot speak). Rejections say nothing about the
// backend's health and do not trip the circuit breaker.
var ErrRejected = errors.New("speech backend rejected input")

// Synthesizer converts one unit of text into encoded audio (MP3, WAV, ...)
type Synthesizer interface {
	// Synthesize speaks text in the given BCP 47 language
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Checker is implemented by backends that can verify their dependencies
type Checker interface {
	Check(ctx context.Context) error
}
