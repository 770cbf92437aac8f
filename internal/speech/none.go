package speech

import "context"

// None is the offline provider. Transcription and synthesis always fail
// with ErrProviderUnavailable, which leaves the voice loop in text-only
// mode.
type None struct{}

var (
	_ Transcriber = None{}
	_ Synthesizer = None{}
)

// Transcribe implements Transcriber.
func (None) Transcribe(context.Context, []byte) (string, error) {
	return "", ErrProviderUnavailable
}

// Synthesize implements Synthesizer.
func (None) Synthesize(context.Context, string) (AudioStream, error) {
	return nil, ErrProviderUnavailable
}
