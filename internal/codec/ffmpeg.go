package codec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/lexiqai/narrator/internal/audio"
)

// FFmpeg runs an ffmpeg binary with stdin/stdout pipes; nothing touches disk
type FFmpeg struct {
	command []string
	target  audio.Format
	bitrate int
}

// NewFFmpeg parses command (binary plus optional leading arguments)
func NewFFmpeg(command string, target audio.Format, bitrateKbps int) (*FFmpeg, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("ffmpeg command empty")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if bitrateKbps <= 0 {
		return nil, fmt.Errorf("mp3 bitrate must be positive, got %d", bitrateKbps)
	}
	return &FFmpeg{command: args, target: target, bitrate: bitrateKbps}, nil
}

// Decode converts any input ffmpeg can read into raw PCM in the working format
func (f *FFmpeg) Decode(ctx context.Context, data []byte) (*audio.Segment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}

	pcm, err := f.run(ctx, data,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(f.target.SampleRate),
		"-ac", strconv.Itoa(f.target.Channels),
		"pipe:1")
	if err != nil {
		return nil, err
	}

	return audio.FromPCM(pcm, f.target)
}

// Encode produces an MP3 through ffmpeg; WAV is written in-process
func (f *FFmpeg) Encode(ctx context.Context, seg *audio.Segment, format Format) ([]byte, error) {
	if seg.IsEmpty() {
		return nil, fmt.Errorf("cannot encode an empty segment")
	}

	switch format {
	case FormatWAV:
		return EncodeWAV(seg)
	case FormatMP3:
		return f.run(ctx, seg.Bytes(),
			"-f", "s16le",
			"-ar", strconv.Itoa(seg.Format.SampleRate),
			"-ac", strconv.Itoa(seg.Format.Channels),
			"-i", "pipe:0",
			"-codec:a", "libmp3lame",
			"-b:a", fmt.Sprintf("%dk", f.bitrate),
			"-f", "mp3",
			"pipe:1")
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Supports reports true for MP3 and WAV
func (f *FFmpeg) Supports(format Format) bool {
	return format == FormatMP3 || format == FormatWAV
}

// Check verifies the ffmpeg binary can be found
func (f *FFmpeg) Check(ctx context.Context) error {
	if _, err := exec.LookPath(f.command[0]); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	full := make([]string, 0, len(f.command)+len(args)+3)
	full = append(full, f.command[1:]...)
	full = append(full, "-hide_banner", "-loglevel", "error")
	full = append(full, args...)

	cmd := exec.CommandContext(ctx, f.command[0], full...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("ffmpeg failed: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}

	return stdout.Bytes(), nil
}
