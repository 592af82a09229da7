package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/narrator/internal/audio"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1}

// speech returns a constant non-zero segment so units and pauses can be told apart
func speech(d time.Duration) *audio.Segment {
	seg := audio.Silence(testFormat, d)
	for i := range seg.Samples {
		seg.Samples[i] = 1000
	}
	return seg
}

// layout returns the lengths in frames of alternating speech/silence runs,
// starting with speech
func layout(seg *audio.Segment) (speechRuns, silenceRuns []int) {
	if len(seg.Samples) == 0 {
		return nil, nil
	}
	current := seg.Samples[0] != 0
	length := 0
	flush := func() {
		if current {
			speechRuns = append(speechRuns, length)
		} else {
			silenceRuns = append(silenceRuns, length)
		}
	}
	for _, s := range seg.Samples {
		if (s != 0) != current {
			flush()
			current = s != 0
			length = 0
		}
		length++
	}
	flush()
	return speechRuns, silenceRuns
}

func TestSilence(t *testing.T) {
	a, err := Silence(testFormat, 250)
	require.NoError(t, err)
	b, err := Silence(testFormat, 250)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, a.Duration())
	assert.Equal(t, a.Duration(), b.Duration())
	for _, s := range a.Samples {
		require.Zero(t, s)
	}

	zero, err := Silence(testFormat, 0)
	require.NoError(t, err)
	assert.True(t, zero.IsEmpty())

	_, err = Silence(testFormat, -1)
	assert.Error(t, err)

	_, err = Silence(audio.Format{}, 10)
	assert.Error(t, err)
}

func TestAssemble_PauseIsSeparator(t *testing.T) {
	pause, err := Silence(testFormat, 100)
	require.NoError(t, err)

	for n := 1; n <= 5; n++ {
		units := make([]*audio.Segment, n)
		for i := range units {
			units[i] = speech(50 * time.Millisecond)
		}

		combined, err := Assemble(units, pause)
		require.NoError(t, err)

		speechRuns, silenceRuns := layout(combined)
		assert.Len(t, speechRuns, n, "units for n=%d", n)
		assert.Len(t, silenceRuns, n-1, "pauses for n=%d", n)
		assert.NotZero(t, combined.Samples[len(combined.Samples)-1], "no trailing pause")

		want := time.Duration(n)*50*time.Millisecond + time.Duration(n-1)*100*time.Millisecond
		assert.Equal(t, want, combined.Duration())
	}
}

func TestAssemble_KeepsOrder(t *testing.T) {
	pause, err := Silence(testFormat, 10)
	require.NoError(t, err)

	units := []*audio.Segment{speech(10 * time.Millisecond), speech(20 * time.Millisecond), speech(30 * time.Millisecond)}
	combined, err := Assemble(units, pause)
	require.NoError(t, err)

	speechRuns, _ := layout(combined)
	assert.Equal(t, []int{80, 160, 240}, speechRuns)
}

func TestAssemble_NoUnits(t *testing.T) {
	pause, err := Silence(testFormat, 10)
	require.NoError(t, err)

	_, err = Assemble(nil, pause)
	assert.Error(t, err)
}

func TestAssembler_FormatMismatch(t *testing.T) {
	pause, err := Silence(testFormat, 10)
	require.NoError(t, err)

	a := NewAssembler(pause)
	err = a.Add(audio.Silence(audio.Format{SampleRate: 16000, Channels: 1}, time.Millisecond))
	assert.Error(t, err)

	// A rejected unit leaves nothing behind
	_, err = a.Finish()
	assert.Error(t, err)
}

func TestAssembler_SingleUse(t *testing.T) {
	pause, err := Silence(testFormat, 10)
	require.NoError(t, err)

	a := NewAssembler(pause)
	require.NoError(t, a.Add(speech(10*time.Millisecond)))
	_, err = a.Finish()
	require.NoError(t, err)

	assert.ErrorIs(t, a.Add(speech(10*time.Millisecond)), ErrAssemblerFinished)
	_, err = a.Finish()
	assert.ErrorIs(t, err, ErrAssemblerFinished)
}

func TestAssemble_ZeroPause(t *testing.T) {
	pause, err := Silence(testFormat, 0)
	require.NoError(t, err)

	combined, err := Assemble([]*audio.Segment{speech(10 * time.Millisecond), speech(10 * time.Millisecond)}, pause)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, combined.Duration())
}
