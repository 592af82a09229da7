package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/lexiqai/narrator/internal/audio"
)

// Native is a pure-Go codec. It decodes MP3 and WAV and encodes WAV.
type Native struct {
	target audio.Format
}

// NewNative creates a codec producing segments in the target format
func NewNative(target audio.Format) (*Native, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &Native{target: target}, nil
}

// Decode sniffs the container and converts the result to the working format
func (n *Native) Decode(ctx context.Context, data []byte) (*audio.Segment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	var (
		seg *audio.Segment
		err error
	)
	switch {
	case isWAV(data):
		seg, err = DecodeWAV(data)
	case isMP3(data):
		seg, err = decodeMP3(data)
	default:
		return nil, fmt.Errorf("unrecognised audio container")
	}
	if err != nil {
		return nil, err
	}

	return audio.Convert(seg, n.target)
}

// Encode writes WAV; MP3 needs the ffmpeg codec
func (n *Native) Encode(ctx context.Context, seg *audio.Segment, format Format) ([]byte, error) {
	if seg.IsEmpty() {
		return nil, fmt.Errorf("cannot encode an empty segment")
	}
	if !n.Supports(format) {
		return nil, fmt.Errorf("%w: %s (pure-Go codec writes wav only)", ErrUnsupportedFormat, format)
	}
	return EncodeWAV(seg)
}

// Supports reports true for WAV only
func (n *Native) Supports(format Format) bool {
	return format == FormatWAV
}

func decodeMP3(data []byte) (*audio.Segment, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 stream: %w", err)
	}

	// go-mp3 always yields 16-bit little-endian stereo
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3 frames: %w", err)
	}

	return audio.FromPCM(pcm, audio.Format{SampleRate: dec.SampleRate(), Channels: 2})
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	// MPEG audio frame sync
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
