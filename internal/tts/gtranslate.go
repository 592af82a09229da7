package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// maxRequestRunes is the longest text the translate endpoint accepts per request
const maxRequestRunes = 100

// GoogleTranslate speaks through the Google Translate TTS endpoint, the
// same service gTTS uses. Responses are MP3.
type GoogleTranslate struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewGoogleTranslate creates a client. baseURL overrides the host derived from tld.
func NewGoogleTranslate(baseURL, tld string, timeout time.Duration, logger zerolog.Logger) *GoogleTranslate {
	if baseURL == "" {
		if tld == "" {
			tld = "com"
		}
		baseURL = fmt.Sprintf("https://translate.google.%s", tld)
	}
	return &GoogleTranslate{
		endpoint:   strings.TrimRight(baseURL, "/") + "/translate_tts",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "gtranslate").Logger(),
	}
}

// Synthesize speaks text, splitting it into several requests when it is long.
// MP3 frames concatenate cleanly so the parts are joined byte-wise.
func (g *GoogleTranslate) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	parts := splitForRequest(text, maxRequestRunes)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: text is empty", ErrRejected)
	}

	var out bytes.Buffer
	for i, part := range parts {
		data, err := g.fetch(ctx, part, language, i, len(parts))
		if err != nil {
			return nil, err
		}
		out.Write(data)
	}

	g.logger.Debug().
		Int("requests", len(parts)).
		Int("bytes", out.Len()).
		Str("language", language).
		Msg("Synthesized text")

	return out.Bytes(), nil
}

func (g *GoogleTranslate) fetch(ctx context.Context, text, language string, idx, total int) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("q", text)
	query.Set("tl", language)
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://translate.google.com/")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("translate TTS returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if isRejection(resp.StatusCode) {
			return nil, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("translate TTS returned empty audio")
	}
	return data, nil
}

// isRejection reports whether a status means the request itself was bad
func isRejection(status int) bool {
	return status >= 400 && status < 500 &&
		status != http.StatusTooManyRequests &&
		status != http.StatusRequestTimeout
}

// splitForRequest breaks text into pieces of at most limit runes, cutting at
// spaces where possible and hard-splitting words that are longer than limit
func splitForRequest(text string, limit int) []string {
	var (
		parts   []string
		current []rune
	)
	flush := func() {
		if s := strings.TrimSpace(string(current)); s != "" {
			parts = append(parts, s)
		}
		current = current[:0]
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			current = append(current, runes[:limit]...)
			flush()
			runes = runes[limit:]
		}

		needed := len(runes)
		if len(current) > 0 {
			needed++ // separating space
		}
		if len(current)+needed > limit {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, runes...)
	}
	flush()

	return parts
}
