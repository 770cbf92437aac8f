// Package speech provides the transcription, synthesis and playback
// capabilities used by the voice loop. Every operation takes a context and
// stops promptly when it is cancelled, which is what makes barge-in work.
package speech

import (
	"context"
	"io"
)

// Transcriber converts recorded speech to text.
type Transcriber interface {
	// Transcribe returns the recognized text. It returns ErrNoSpeech when
	// the audio contained nothing intelligible.
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize starts synthesis and returns a stream of audio. The stream
	// is bound to ctx; cancelling ctx aborts it.
	Synthesize(ctx context.Context, text string) (AudioStream, error)
}

// Player plays an audio stream to completion or until ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio AudioStream) error
}

// AudioStream is a readable audio body with known format. Callers must
// Close it.
type AudioStream interface {
	io.ReadCloser
	Format() Format
}

// Encoding names an audio encoding.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_s16le"
	EncodingMP3   Encoding = "mp3"
	EncodingWAV   Encoding = "wav"
)

// Format describes an audio stream.
type Format struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// PCM24k is the raw 24 kHz mono 16-bit format returned by OpenAI speech.
var PCM24k = Format{Encoding: EncodingPCM16, SampleRate: 24000, Channels: 1}

type readerStream struct {
	io.ReadCloser
	format Format
}

func (s readerStream) Format() Format { return s.format }

// NewStream wraps rc as an AudioStream of the given format.
func NewStream(rc io.ReadCloser, f Format) AudioStream {
	return readerStream{ReadCloser: rc, format: f}
}
