// Package codec turns encoded audio bytes into PCM segments and back.
//
// Two backends are provided: FFmpeg shells out to an ffmpeg binary and can
// read any container ffmpeg understands while writing MP3 or WAV; Native is
// pure Go, reads MP3 and WAV and writes WAV only.
package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexiqai/narrator/internal/audio"
)

// ErrUnsupportedFormat is returned when an output format cannot be produced
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format is the container/codec of an encoded audio stream
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// ParseFormat normalises a format tag such as "MP3" or ".wav"
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatMP3, FormatWAV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// MIMEType returns the content type served for the format
func (f Format) MIMEType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	}
	return "application/octet-stream"
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	return string(f)
}

// Codec decodes speech backend output and encodes the final combined audio
type Codec interface {
	// Decode turns an encoded stream into a segment in the codec's working format
	Decode(ctx context.Context, data []byte) (*audio.Segment, error)

	// Encode serialises a segment into a standalone stream of the given format
	Encode(ctx context.Context, seg *audio.Segment, format Format) ([]byte, error)

	// Supports reports whether Encode can produce the format
	Supports(format Format) bool
}

// Checker is implemented by codecs that depend on something outside the process
type Checker interface {
	Check(ctx context.Context) error
}

// New builds the codec named by kind ("ffmpeg" or "native")
func New(kind, ffmpegCommand string, target audio.Format, bitrateKbps int) (Codec, error) {
	switch kind {
	case "ffmpeg":
		return NewFFmpeg(ffmpegCommand, target, bitrateKbps)
	case "native":
		return NewNative(target)
	}
	return nil, fmt.Errorf("unknown codec %q", kind)
}
