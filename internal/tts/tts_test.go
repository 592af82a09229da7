package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/narrator/internal/audio"
	"github.com/lexiqai/narrator/internal/codec"
	"github.com/lexiqai/narrator/internal/config"
	"github.com/lexiqai/narrator/internal/resilience"
)

func TestSplitForRequest(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "short", text: "hello world", limit: 100, want: []string{"hello world"}},
		{name: "empty", text: "   ", limit: 100, want: nil},
		{name: "word boundary", text: "aaa bbb ccc", limit: 7, want: []string{"aaa bbb", "ccc"}},
		{name: "long word", text: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "long word after text", text: "xy abcdefgh z", limit: 4, want: []string{"xy", "abcd", "efgh", "z"}},
		{name: "runes", text: "ääää öööö", limit: 4, want: []string{"ääää", "öööö"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitForRequest(tt.text, tt.limit)
			assert.Equal(t, tt.want, got)
			for _, part := range got {
				assert.LessOrEqual(t, utf8.RuneCountInString(part), tt.limit)
			}
		})
	}
}

func TestGoogleTranslate_Synthesize(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/translate_tts", r.URL.Path)
		assert.Equal(t, "tw-ob", r.URL.Query().Get("client"))
		assert.Equal(t, "de", r.URL.Query().Get("tl"))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("part" + r.URL.Query().Get("idx")))
	}))
	defer srv.Close()

	g := NewGoogleTranslate(srv.URL, "", 5*time.Second, zerolog.Nop())
	text := strings.Repeat("wort ", 30) // 150 runes, two requests

	data, err := g.Synthesize(context.Background(), text, "de")
	require.NoError(t, err)
	assert.Equal(t, "part0part1", string(data))
	assert.Equal(t, int32(2), requests.Load())
}

func TestGoogleTranslate_StatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		rejected bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			g := NewGoogleTranslate(srv.URL, "", 5*time.Second, zerolog.Nop())
			_, err := g.Synthesize(context.Background(), "hello", "en")
			require.Error(t, err)
			assert.Equal(t, tt.rejected, errors.Is(err, ErrRejected))
		})
	}
}

func TestGoogleTranslate_EmptyText(t *testing.T) {
	g := NewGoogleTranslate("http://127.0.0.1:1", "", time.Second, zerolog.Nop())
	_, err := g.Synthesize(context.Background(), "  ", "en")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestToneSynth(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1}
	s := NewToneSynth(format)

	data, err := s.Synthesize(context.Background(), "hello world", "en")
	require.NoError(t, err)

	seg, err := codec.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, format, seg.Format)
	assert.Equal(t, s.Duration("hello world"), seg.Duration())

	assert.Equal(t, 200*time.Millisecond, s.Duration("a"))
	assert.Greater(t, s.Duration("a much longer line of text"), s.Duration("short"))

	_, err = s.Synthesize(context.Background(), "", "en")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestExecSynth(t *testing.T) {
	_, err := NewExecSynth("")
	assert.Error(t, err)

	_, err = NewExecSynth(`speak "unterminated`)
	assert.Error(t, err)

	s, err := NewExecSynth("cat")
	require.NoError(t, err)
	if s.Check(context.Background()) != nil {
		t.Skip("cat not available")
	}

	data, err := s.Synthesize(context.Background(), "echoed", "en")
	require.NoError(t, err)
	assert.Equal(t, "echoed", string(data))
}

func TestExecSynth_LanguagePlaceholder(t *testing.T) {
	s, err := NewExecSynth("echo -n {lang}")
	require.NoError(t, err)
	if s.Check(context.Background()) != nil {
		t.Skip("echo not available")
	}

	data, err := s.Synthesize(context.Background(), "ignored", "fr")
	require.NoError(t, err)
	assert.Equal(t, "fr", strings.TrimSpace(string(data)))
}

type stubSynth struct {
	calls int
	err   error
}

func (s *stubSynth) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(text), nil
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	stub := &stubSynth{err: errors.New("backend down")}
	g := WithBreaker(stub, resilience.NewCircuitBreaker("test-open", 2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := g.Synthesize(context.Background(), "x", "en")
		require.Error(t, err)
	}

	_, err := g.Synthesize(context.Background(), "x", "en")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, stub.calls, "open circuit must not reach the backend")
	assert.ErrorIs(t, g.Check(context.Background()), resilience.ErrCircuitOpen)
}

func TestGuarded_CheckReportsFailureCounts(t *testing.T) {
	stub := &stubSynth{err: errors.New("backend down")}
	g := WithBreaker(stub, resilience.NewCircuitBreaker("test-check", 2, time.Minute))
	require.NoError(t, g.Check(context.Background()))

	for i := 0; i < 2; i++ {
		_, _ = g.Synthesize(context.Background(), "x", "en")
	}

	err := g.Check(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Contains(t, err.Error(), "2 of 2 requests failed (100%)")
}

func TestGuarded_RejectionsDoNotTrip(t *testing.T) {
	stub := &stubSynth{err: ErrRejected}
	cb := resilience.NewCircuitBreaker("test-rejected", 1, time.Minute)
	g := WithBreaker(stub, cb)

	for i := 0; i < 3; i++ {
		_, err := g.Synthesize(context.Background(), "x", "en")
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, resilience.StateClosed, cb.GetState())
	assert.Equal(t, 3, stub.calls)
}

func TestGuarded_NoRetry(t *testing.T) {
	stub := &stubSynth{err: errors.New("transient")}
	g := WithBreaker(stub, resilience.NewCircuitBreaker("test-retry", 10, time.Minute))

	_, err := g.Synthesize(context.Background(), "x", "en")
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestModelLanguage(t *testing.T) {
	assert.Equal(t, "en", modelLanguage("aura-asteria-en"))
	assert.Equal(t, "", modelLanguage("custom"))

	d := &DeepgramSpeaker{model: "aura-asteria-en", modelLanguage: "en"}
	assert.True(t, d.speaks("en"))
	assert.True(t, d.speaks("en-GB"))
	assert.False(t, d.speaks("de"))
	assert.False(t, d.speaks("not a tag"))
}

func TestNewDeepgramSpeaker_RequiresKey(t *testing.T) {
	_, err := NewDeepgramSpeaker("", "aura-asteria-en", zerolog.Nop())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		SpeechBackend:              "tone",
		SampleRate:                 16000,
		Channels:                   1,
		SpeechTimeout:              5,
		CircuitBreakerMaxFailures:  3,
		CircuitBreakerResetTimeout: 10,
	}
	g, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, ok := g.next.(*ToneSynth)
	assert.True(t, ok)

	cfg.SpeechBackend = "gtranslate"
	g, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, ok = g.next.(*GoogleTranslate)
	assert.True(t, ok)

	cfg.SpeechBackend = "unknown"
	_, err = New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
