package audio

import (
	"encoding/binary"
	"testing"
	"time"
)

func TestPCMToSamples(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	pcmData := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcmData[i*2:], uint16(sample))
	}

	decoded, err := PCMToSamples(pcmData)
	if err != nil {
		t.Fatalf("PCMToSamples failed: %v", err)
	}

	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}

	// Converting back must reproduce the original bytes
	encoded := SamplesToPCM(decoded)
	for i := range pcmData {
		if encoded[i] != pcmData[i] {
			t.Fatalf("Byte %d differs after conversion: expected %d, got %d", i, pcmData[i], encoded[i])
		}
	}
}

func TestPCMToSamples_OddLength(t *testing.T) {
	_, err := PCMToSamples([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Error("Expected error for odd-length PCM data")
	}
}

func TestConvert_Resample(t *testing.T) {
	src := Tone(Format{SampleRate: 24000, Channels: 1}, 100*time.Millisecond, 440, 0.5)

	out, err := Convert(src, Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	// 0.1 seconds at 8kHz
	if out.Frames() != 800 {
		t.Errorf("Expected 800 frames, got %d", out.Frames())
	}
	if out.Duration() != src.Duration() {
		t.Errorf("Expected duration %v to be preserved, got %v", src.Duration(), out.Duration())
	}
}

func TestConvert_MonoToStereo(t *testing.T) {
	src := &Segment{Format: Format{SampleRate: 8000, Channels: 1}, Samples: []int16{1, 2, 3}}

	out, err := Convert(src, Format{SampleRate: 8000, Channels: 2})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	expected := []int16{1, 1, 2, 2, 3, 3}
	if len(out.Samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(out.Samples))
	}
	for i := range expected {
		if out.Samples[i] != expected[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, expected[i], out.Samples[i])
		}
	}
}

func TestConvert_StereoToMono(t *testing.T) {
	src := &Segment{Format: Format{SampleRate: 8000, Channels: 2}, Samples: []int16{100, 300, -200, -400}}

	out, err := Convert(src, Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if out.Samples[0] != 200 || out.Samples[1] != -300 {
		t.Errorf("Expected averaged samples [200 -300], got %v", out.Samples)
	}
}

func TestConvert_SameFormat(t *testing.T) {
	src := Tone(Format{SampleRate: 16000, Channels: 1}, 10*time.Millisecond, 440, 0.5)

	out, err := Convert(src, src.Format)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if out != src {
		t.Error("Expected matching format to return the same segment")
	}
}

func TestConvert_InvalidTarget(t *testing.T) {
	src := Empty(Format{SampleRate: 16000, Channels: 1})
	if _, err := Convert(src, Format{SampleRate: 0, Channels: 1}); err == nil {
		t.Error("Expected error for zero sample rate")
	}
	if _, err := Convert(src, Format{SampleRate: 16000, Channels: 6}); err == nil {
		t.Error("Expected error for unsupported channel count")
	}
}
