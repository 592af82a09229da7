package audio

import (
	"fmt"
	"math"
)

// PCMToSamples converts 16-bit signed little-endian PCM to samples
func PCMToSamples(pcmData []byte) ([]int16, error) {
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples)")
	}

	samples := make([]int16, len(pcmData)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
	}
	return samples, nil
}

// SamplesToPCM converts samples to 16-bit signed little-endian PCM
func SamplesToPCM(samples []int16) []byte {
	pcmData := make([]byte, len(samples)*2)
	for i, sample := range samples {
		pcmData[i*2] = byte(sample)
		pcmData[i*2+1] = byte(sample >> 8)
	}
	return pcmData
}

// Convert returns seg rendered in the target format.
// Channel layout is converted first, then the sample rate.
// The input is returned untouched when it already matches.
func Convert(seg *Segment, target Format) (*Segment, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := seg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("source segment: %w", err)
	}
	if seg.Format == target {
		return seg, nil
	}

	samples := convertChannels(seg.Samples, seg.Format.Channels, target.Channels)
	if seg.Format.SampleRate != target.SampleRate {
		samples = resample(samples, target.Channels, seg.Format.SampleRate, target.SampleRate)
	}
	return &Segment{Format: target, Samples: samples}, nil
}

// convertChannels downmixes stereo to mono or duplicates mono into stereo
func convertChannels(samples []int16, from, to int) []int16 {
	if from == to {
		return samples
	}

	if from == 2 && to == 1 {
		mono := make([]int16, len(samples)/2)
		for i := range mono {
			mono[i] = int16((int32(samples[i*2]) + int32(samples[i*2+1])) / 2)
		}
		return mono
	}

	// mono -> stereo
	stereo := make([]int16, len(samples)*2)
	for i, sample := range samples {
		stereo[i*2] = sample
		stereo[i*2+1] = sample
	}
	return stereo
}

// resample performs linear interpolation resampling per channel
func resample(samples []int16, channels, inputRate, outputRate int) []int16 {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	inFrames := len(samples) / channels
	ratio := float64(outputRate) / float64(inputRate)
	outFrames := int(math.Round(float64(inFrames) * ratio))
	output := make([]int16, outFrames*channels)

	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		if idx0 >= inFrames {
			idx0 = inFrames - 1
		}
		idx1 := idx0 + 1
		if idx1 >= inFrames {
			idx1 = inFrames - 1
		}
		fraction := srcPos - float64(idx0)

		for ch := 0; ch < channels; ch++ {
			s0 := float64(samples[idx0*channels+ch])
			s1 := float64(samples[idx1*channels+ch])
			output[i*channels+ch] = int16(s0*(1.0-fraction) + s1*fraction)
		}
	}

	return output
}
