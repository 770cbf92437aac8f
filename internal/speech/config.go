package speech

import (
	"log/slog"
	"time"
)

// Config holds settings for hosted speech providers.
type Config struct {
	BaseURL         string
	APIKey          string
	TranscribeModel string
	SpeechModel     string
	Voice           string
	Language        string

	// Timeout bounds a transcription request and the wait for the first
	// byte of synthesized audio.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "https://api.openai.com/v1".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithVoice sets the synthesis voice.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithModels sets the transcription and speech models.
func WithModels(transcribe, speech string) Option {
	return func(c *Config) {
		if transcribe != "" {
			c.TranscribeModel = transcribe
		}
		if speech != "" {
			c.SpeechModel = speech
		}
	}
}

// WithLanguage sets the transcription language hint (ISO-639-1).
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetries sets the retry count and base delay for retryable failures.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = n
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// DefaultConfig returns defaults for the OpenAI audio API.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.openai.com/v1",
		TranscribeModel: "whisper-1",
		SpeechModel:     "tts-1",
		Voice:           "nova",
		Language:        "en",
		Timeout:         15 * time.Second,
		MaxRetries:      1,
		RetryDelay:      500 * time.Millisecond,
		Logger:          slog.Default(),
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
