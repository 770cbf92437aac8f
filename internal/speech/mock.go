package speech

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// Mock implements Transcriber, Synthesizer and Player for tests.
type Mock struct {
	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)
	SynthesizeFunc func(ctx context.Context, text string) (AudioStream, error)
	PlayFunc       func(ctx context.Context, audio AudioStream) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Arg    string
	Time   time.Time
}

var (
	_ Transcriber = (*Mock)(nil)
	_ Synthesizer = (*Mock)(nil)
	_ Player      = (*Mock)(nil)
)

// NewMock returns a Mock that transcribes everything as "where am i",
// synthesizes text as its own bytes and plays instantly.
func NewMock() *Mock {
	return &Mock{
		TranscribeFunc: func(context.Context, []byte) (string, error) {
			return "where am i", nil
		},
		SynthesizeFunc: func(_ context.Context, text string) (AudioStream, error) {
			return NewStream(io.NopCloser(strings.NewReader(text)), PCM24k), nil
		},
		PlayFunc: func(_ context.Context, audio AudioStream) error {
			defer audio.Close()
			_, err := io.Copy(io.Discard, audio)
			return err
		},
	}
}

// Transcribe implements Transcriber.
func (m *Mock) Transcribe(ctx context.Context, audio []byte) (string, error) {
	m.record("Transcribe", string(audio))
	if m.TranscribeFunc == nil {
		return "", ErrProviderUnavailable
	}
	return m.TranscribeFunc(ctx, audio)
}

// Synthesize implements Synthesizer.
func (m *Mock) Synthesize(ctx context.Context, text string) (AudioStream, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc == nil {
		return nil, ErrProviderUnavailable
	}
	return m.SynthesizeFunc(ctx, text)
}

// Play implements Player.
func (m *Mock) Play(ctx context.Context, audio AudioStream) error {
	m.record("Play", "")
	if m.PlayFunc == nil {
		return audio.Close()
	}
	return m.PlayFunc(ctx, audio)
}

func (m *Mock) record(method, arg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Arg: arg, Time: time.Now()})
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times method was invoked.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
