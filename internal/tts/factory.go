package tts

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/narrator/internal/config"
	"github.com/lexiqai/narrator/internal/resilience"
)

// New builds the configured speech backend behind a circuit breaker
func New(cfg *config.Config, logger zerolog.Logger) (*Guarded, error) {
	var (
		synth Synthesizer
		err   error
	)

	switch cfg.SpeechBackend {
	case "gtranslate":
		synth = NewGoogleTranslate(cfg.GTranslateURL, cfg.GTranslateTLD, cfg.SpeechTimeoutDuration(), logger)
	case "deepgram":
		synth, err = NewDeepgramSpeaker(cfg.DeepgramAPIKey, cfg.DeepgramSpeakModel, logger)
	case "exec":
		synth, err = NewExecSynth(cfg.SpeechCommand)
	case "tone":
		synth = NewToneSynth(cfg.AudioFormat())
	default:
		err = fmt.Errorf("unknown speech backend %q", cfg.SpeechBackend)
	}
	if err != nil {
		return nil, err
	}

	cb := resilience.NewCircuitBreaker(
		cfg.SpeechBackend,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	return WithBreaker(synth, cb), nil
}
