package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// CommandPlayer pipes audio into an external process such as
// "aplay -q -f S16_LE -r 24000 -c 1 -" or "ffplay -nodisp -autoexit -".
// Cancelling the context kills the process, which stops playback
// immediately.
type CommandPlayer struct {
	Command []string
	Logger  *slog.Logger
}

var _ Player = (*CommandPlayer)(nil)

// NewCommandPlayer creates a CommandPlayer for argv.
func NewCommandPlayer(argv []string, logger *slog.Logger) (*CommandPlayer, error) {
	if len(argv) == 0 {
		return nil, errors.New("speech: empty player command")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("speech: player %q: %w", argv[0], err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandPlayer{Command: argv, Logger: logger.With("component", "speech.player")}, nil
}

// Play implements Player.
func (p *CommandPlayer) Play(ctx context.Context, audio AudioStream) error {
	defer audio.Close()

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdin = audio
	cmd.WaitDelay = 500 * time.Millisecond

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("speech: play: %w", err)
	}
	if p.Logger != nil {
		p.Logger.Debug("playback finished", "duration", time.Since(start))
	}
	return nil
}

// DiscardPlayer consumes audio without playing it, at roughly real time
// when Paced is set. It is used for headless runs and tests.
type DiscardPlayer struct {
	Paced bool
}

var _ Player = DiscardPlayer{}

// Play implements Player.
func (d DiscardPlayer) Play(ctx context.Context, audio AudioStream) error {
	defer audio.Close()

	f := audio.Format()
	bytesPerSec := f.SampleRate * f.Channels * 2
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := audio.Read(buf)
		if d.Paced && n > 0 && bytesPerSec > 0 && f.Encoding == EncodingPCM16 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(n) * time.Second / time.Duration(bytesPerSec)):
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
