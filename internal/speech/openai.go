package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const providerOpenAI = "openai"

// OpenAI implements Transcriber with the Whisper transcription endpoint and
// Synthesizer with the streaming speech endpoint.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

var (
	_ Transcriber = (*OpenAI)(nil)
	_ Synthesizer = (*OpenAI)(nil)
)

// NewOpenAI creates an OpenAI speech provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// No client-wide timeout: a synthesized stream is read for as long as
	// playback lasts. The header timeout still bounds time to first byte.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &OpenAI{
		config:  cfg,
		client:  &http.Client{Transport: transport},
		logger:  cfg.Logger.With("component", "speech.openai"),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// Transcribe uploads audio as a WAV file and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}
	start := time.Now()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("model", o.config.TranscribeModel)
	if o.config.Language != "" {
		_ = w.WriteField("language", o.config.Language)
	}
	part, err := w.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(audio); err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("write audio: %w", err))
	}
	if err := w.Close(); err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("close form: %w", err))
	}

	resp, err := o.doWithRetry(ctx, "/audio/transcriptions", w.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}

	text := strings.TrimSpace(result.Text)
	o.logger.Debug("transcribed audio",
		"bytes", len(audio),
		"chars", len(text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Synthesize requests raw PCM speech and returns the response body as a
// stream without buffering it.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (AudioStream, error) {
	payload, err := json.Marshal(map[string]any{
		"model":           o.config.SpeechModel,
		"voice":           o.config.Voice,
		"input":           text,
		"response_format": "pcm",
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	resp, err := o.doWithRetry(ctx, "/audio/speech", "application/json", payload)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("synthesis started", "chars", len(text), "voice", o.config.Voice)
	return NewStream(resp.Body, PCM24k), nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// doWithRetry posts body to path and returns a 200 response, retrying
// rate-limit and server errors.
func (o *OpenAI) doWithRetry(ctx context.Context, path, contentType string, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := o.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerOpenAI, err)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := parseError(resp)
		resp.Body.Close()
		if !apiErr.IsRetryable() {
			return nil, apiErr
		}
		lastErr = apiErr
		o.logger.Warn("retrying request", "path", path, "attempt", attempt+1, "status", resp.StatusCode)
	}

	return nil, lastErr
}

func parseError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message, Provider: providerOpenAI}
}
