package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/lexiqai/narrator/internal/audio"
)

const wavPCMFormat = 1

// EncodeWAV writes the segment as a 16-bit PCM WAV file
func EncodeWAV(seg *audio.Segment) ([]byte, error) {
	out := &writeSeeker{}
	enc := wav.NewEncoder(out, seg.Format.SampleRate, 16, seg.Format.Channels, wavPCMFormat)

	data := make([]int, len(seg.Samples))
	for i, sample := range seg.Samples {
		data[i] = int(sample)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: seg.Format.Channels,
			SampleRate:  seg.Format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise wav header: %w", err)
	}

	return out.buf, nil
}

// DecodeWAV reads an integer PCM WAV file into a segment in its native format
func DecodeWAV(data []byte) (*audio.Segment, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}
	// Float and compressed payloads would read back as noise
	if dec.WavAudioFormat != wavPCMFormat {
		return nil, fmt.Errorf("unsupported wav encoding %d, only integer PCM is read", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}

	// Scale every supported bit depth to 16 bits
	var toInt16 func(int) int16
	switch dec.BitDepth {
	case 8:
		toInt16 = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		toInt16 = func(v int) int16 { return int16(v) }
	case 24:
		toInt16 = func(v int) int16 { return int16(v >> 8) }
	case 32:
		toInt16 = func(v int) int16 { return int16(v >> 16) }
	default:
		return nil, fmt.Errorf("unsupported wav bit depth %d", dec.BitDepth)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = toInt16(v)
	}

	seg := &audio.Segment{
		Format: audio.Format{
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
		},
		Samples: samples,
	}
	if err := seg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("wav file: %w", err)
	}
	return seg, nil
}

// writeSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back to patch the header
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
