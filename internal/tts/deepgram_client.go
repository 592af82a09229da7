package tts

import (
	"context"
	"fmt"
	"strings"

	speakapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/speak/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speakclient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// DeepgramSpeaker implements Synthesizer using Deepgram's Aura REST API.
// Aura voices are single-language; the language is the model name suffix.
type DeepgramSpeaker struct {
	client        *speakapi.Client
	model         string
	modelLanguage string
	logger        zerolog.Logger
}

// NewDeepgramSpeaker creates a Deepgram text-to-speech client
func NewDeepgramSpeaker(apiKey, model string, logger zerolog.Logger) (*DeepgramSpeaker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("deepgram speak model is required")
	}

	speakclient.InitWithDefault()
	c := speakclient.NewREST(apiKey, &interfaces.ClientOptions{})

	return &DeepgramSpeaker{
		client:        speakapi.New(c),
		model:         model,
		modelLanguage: modelLanguage(model),
		logger:        logger.With().Str("component", "deepgram").Str("model", model).Logger(),
	}, nil
}

// Synthesize converts text to MP3 audio
func (d *DeepgramSpeaker) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrRejected)
	}
	if !d.speaks(lang) {
		return nil, fmt.Errorf("%w: model %s does not speak %q", ErrRejected, d.model, lang)
	}

	options := &interfaces.SpeakOptions{
		Model: d.model,
	}

	var buffer interfaces.RawResponse
	if _, err := d.client.ToStream(ctx, text, options, &buffer); err != nil {
		return nil, fmt.Errorf("deepgram speak request failed: %w", err)
	}
	if buffer.Len() == 0 {
		return nil, fmt.Errorf("deepgram returned empty audio")
	}

	d.logger.Debug().Int("bytes", buffer.Len()).Msg("Synthesized text")
	return buffer.Bytes(), nil
}

// speaks compares base languages, so "en-GB" is accepted by an "-en" model
func (d *DeepgramSpeaker) speaks(lang string) bool {
	if d.modelLanguage == "" {
		return true
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base.String() == d.modelLanguage
}

// modelLanguage extracts the language suffix of names like "aura-asteria-en"
func modelLanguage(model string) string {
	idx := strings.LastIndex(model, "-")
	if idx < 0 {
		return ""
	}
	suffix := model[idx+1:]
	if _, err := language.ParseBase(suffix); err != nil {
		return ""
	}
	return suffix
}
