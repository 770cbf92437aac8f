package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/eytandecker/skytour/internal/geo"
)

// SimulatedConfig describes the flight flown by a Simulated source.
type SimulatedConfig struct {
	Start       geo.Point
	AltitudeAGL float64 // feet
	Heading     float64 // degrees true
	GroundSpeed float64 // knots
	TurnRate    float64 // degrees per second, positive is a right turn
}

// Simulated is a dead-reckoning Source used when no simulator is attached.
// Each Poll advances the aircraft by the wall time elapsed since the last one.
type Simulated struct {
	mu      sync.Mutex
	cfg     SimulatedConfig
	pos     geo.Point
	heading float64
	last    time.Time
	now     func() time.Time
}

// NewSimulated creates a Simulated source at cfg.Start.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	return &Simulated{
		cfg:     cfg,
		pos:     cfg.Start,
		heading: geo.NormalizeHeading(cfg.Heading),
		now:     time.Now,
	}
}

// Poll implements Source.
func (s *Simulated) Poll(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.last.IsZero() {
		dt := now.Sub(s.last)
		s.pos = geo.Destination(s.pos, s.heading, s.cfg.GroundSpeed*dt.Hours())
		s.heading = geo.NormalizeHeading(s.heading + s.cfg.TurnRate*dt.Seconds())
	}
	s.last = now

	return Reading{
		Timestamp:   now,
		Latitude:    s.pos.Latitude,
		Longitude:   s.pos.Longitude,
		AltitudeAGL: s.cfg.AltitudeAGL,
		Heading:     s.heading,
		GroundSpeed: s.cfg.GroundSpeed,
	}, nil
}

// Steer changes the simulated heading and ground speed.
func (s *Simulated) Steer(heading, groundSpeed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = geo.NormalizeHeading(heading)
	s.cfg.GroundSpeed = groundSpeed
}
