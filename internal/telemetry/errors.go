package telemetry

import "errors"

var (
	// ErrStale is returned when position data has not been updated within the stale threshold.
	ErrStale = errors.New("telemetry: position data is stale")

	// ErrMalformed is returned when a reading cannot be normalized into a sample.
	ErrMalformed = errors.New("telemetry: malformed reading")
)
