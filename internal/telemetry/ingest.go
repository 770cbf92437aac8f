package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eytandecker/skytour/pkg/types"
)

// IngestConfig holds settings for the polling loop.
type IngestConfig struct {
	Interval       time.Duration
	PollTimeout    time.Duration
	StaleThreshold time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// DefaultIngestConfig returns an IngestConfig with sensible defaults.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Interval:       500 * time.Millisecond,
		PollTimeout:    250 * time.Millisecond,
		StaleThreshold: 5 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   50 * time.Millisecond,
	}
}

// Ingest polls a Source at a fixed cadence and publishes normalized samples
// to a Cell. It never waits on consumers.
type Ingest struct {
	src    Source
	cell   *Cell
	cfg    IngestConfig
	logger *slog.Logger
	now    func() time.Time

	started  time.Time
	failures int
}

// NewIngest creates an Ingest feeding cell from src.
func NewIngest(src Source, cell *Cell, cfg IngestConfig, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{
		src:    src,
		cell:   cell,
		cfg:    cfg,
		logger: logger.With("component", "telemetry.ingest"),
		now:    time.Now,
	}
}

// Run blocks, polling on every tick until ctx is cancelled.
func (in *Ingest) Run(ctx context.Context) error {
	interval := in.cfg.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	in.started = in.now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		in.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (in *Ingest) tick(ctx context.Context) {
	s, err := in.pollWithRetry(ctx)
	if err == nil {
		if in.failures > 0 {
			in.logger.Info("telemetry recovered", "failed_polls", in.failures)
		}
		in.failures = 0
		in.cell.Update(s)
		return
	}
	if ctx.Err() != nil {
		return
	}

	in.failures++
	if in.failures == 1 {
		in.logger.Warn("telemetry poll failed", "error", err)
	} else {
		in.logger.Debug("telemetry poll failed", "error", err, "consecutive", in.failures)
	}

	last := in.cell.LastUpdated()
	if last.IsZero() {
		last = in.started
	}
	if in.now().Sub(last) > in.cfg.StaleThreshold && in.cell.MarkStale() {
		in.logger.Warn("telemetry stale", "since", last, "threshold", in.cfg.StaleThreshold)
	}
}

// pollWithRetry polls once and retries failed or malformed polls with
// exponential backoff, capped at the poll interval.
func (in *Ingest) pollWithRetry(ctx context.Context) (types.TelemetrySample, error) {
	var lastErr error
	delay := in.cfg.RetryBackoff

	for attempt := 0; attempt <= in.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return types.TelemetrySample{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if in.cfg.Interval > 0 && delay > in.cfg.Interval {
				delay = in.cfg.Interval
			}
		}

		s, err := in.pollOnce(ctx)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return types.TelemetrySample{}, ctx.Err()
		}
	}
	return types.TelemetrySample{}, fmt.Errorf("telemetry: %d attempts failed: %w", in.cfg.MaxRetries+1, lastErr)
}

func (in *Ingest) pollOnce(ctx context.Context) (types.TelemetrySample, error) {
	pctx := ctx
	if in.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, in.cfg.PollTimeout)
		defer cancel()
	}
	r, err := in.src.Poll(pctx)
	if err != nil {
		return types.TelemetrySample{}, err
	}
	return Normalize(r, in.now())
}
