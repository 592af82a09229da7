package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/narrator/internal/audio"
	"github.com/lexiqai/narrator/internal/codec"
)

// Config holds all configuration for the narrator service and CLI
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:"9090"` // Empty disables the gRPC health server

	// Speech backend: gtranslate, deepgram, exec or tone
	SpeechBackend  string `envconfig:"SPEECH_BACKEND" default:"gtranslate"`
	SpeechLanguage string `envconfig:"SPEECH_LANGUAGE" default:"en"`
	SpeechTimeout  int    `envconfig:"SPEECH_TIMEOUT" default:"30"` // seconds per unit

	// Google Translate TTS endpoint (the service behind gTTS)
	GTranslateURL string `envconfig:"GTRANSLATE_URL" default:""` // Overrides the host derived from the TLD
	GTranslateTLD string `envconfig:"GTRANSLATE_TLD" default:"com"`

	// Deepgram Aura text-to-speech
	DeepgramAPIKey     string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramSpeakModel string `envconfig:"DEEPGRAM_SPEAK_MODEL" default:"aura-asteria-en"`

	// Local command; text on stdin, encoded audio on stdout. {lang} is substituted.
	SpeechCommand string `envconfig:"SPEECH_COMMAND" default:""`

	// Codec configuration
	Codec          string `envconfig:"CODEC" default:"ffmpeg"` // ffmpeg or native
	FFmpegCommand  string `envconfig:"FFMPEG_COMMAND" default:"ffmpeg"`
	MP3BitrateKbps int    `envconfig:"MP3_BITRATE_KBPS" default:"128"`
	SampleRate     int    `envconfig:"SAMPLE_RATE" default:"24000"`
	Channels       int    `envconfig:"CHANNELS" default:"1"`
	OutputFormat   string `envconfig:"OUTPUT_FORMAT" default:"mp3"`

	// Limits applied by callers, not the pipeline
	PauseMinMS     int   `envconfig:"PAUSE_MIN_MS" default:"500"`
	PauseMaxMS     int   `envconfig:"PAUSE_MAX_MS" default:"5000"`
	PauseDefaultMS int   `envconfig:"PAUSE_DEFAULT_MS" default:"1500"`
	MaxInputBytes  int64 `envconfig:"MAX_INPUT_BYTES" default:"1048576"`

	// Result cache
	ResultCacheSize int `envconfig:"RESULT_CACHE_SIZE" default:"64"`
	ResultCacheTTL  int `envconfig:"RESULT_CACHE_TTL" default:"30"` // minutes

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field rules
func (c *Config) Validate() error {
	switch c.SpeechBackend {
	case "gtranslate", "tone":
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when SPEECH_BACKEND=deepgram")
		}
	case "exec":
		if c.SpeechCommand == "" {
			return fmt.Errorf("SPEECH_COMMAND is required when SPEECH_BACKEND=exec")
		}
	default:
		return fmt.Errorf("unknown SPEECH_BACKEND %q", c.SpeechBackend)
	}

	format, err := codec.ParseFormat(c.OutputFormat)
	if err != nil {
		return fmt.Errorf("invalid OUTPUT_FORMAT: %w", err)
	}
	c.OutputFormat = string(format)

	switch c.Codec {
	case "ffmpeg":
	case "native":
		if format != codec.FormatWAV {
			return fmt.Errorf("OUTPUT_FORMAT=%s requires CODEC=ffmpeg", format)
		}
	default:
		return fmt.Errorf("unknown CODEC %q", c.Codec)
	}

	if err := c.AudioFormat().Validate(); err != nil {
		return fmt.Errorf("invalid audio format: %w", err)
	}

	if c.PauseMinMS < 0 || c.PauseMinMS > c.PauseMaxMS {
		return fmt.Errorf("pause range %d-%dms is invalid", c.PauseMinMS, c.PauseMaxMS)
	}
	if c.PauseDefaultMS < c.PauseMinMS || c.PauseDefaultMS > c.PauseMaxMS {
		return fmt.Errorf("PAUSE_DEFAULT_MS %d is outside %d-%dms", c.PauseDefaultMS, c.PauseMinMS, c.PauseMaxMS)
	}
	if c.SpeechTimeout <= 0 {
		return fmt.Errorf("SPEECH_TIMEOUT must be positive")
	}

	return nil
}

// AudioFormat returns the working PCM format of the pipeline
func (c *Config) AudioFormat() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// SpeechTimeoutDuration returns the per-unit synthesis timeout
func (c *Config) SpeechTimeoutDuration() time.Duration {
	return time.Duration(c.SpeechTimeout) * time.Second
}

// ResultCacheTTLDuration returns how long finished audio stays downloadable
func (c *Config) ResultCacheTTLDuration() time.Duration {
	return time.Duration(c.ResultCacheTTL) * time.Minute
}
