package types

import "time"

// TelemetrySample is one normalized aircraft state produced by the ingest loop.
// Samples are values; a newer sample supersedes an older one, it never mutates it.
type TelemetrySample struct {
	Timestamp     time.Time `json:"timestamp"`
	Latitude      float64   `json:"latitude"`           // degrees
	Longitude     float64   `json:"longitude"`          // degrees
	AltitudeAGL   float64   `json:"altitude_agl_ft"`    // feet above ground
	AltitudeMSL   float64   `json:"altitude_msl_ft"`    // zero if the source does not report it
	HeadingTrue   float64   `json:"heading_true_deg"`   // degrees true, [0, 360)
	GroundSpeed   float64   `json:"ground_speed_kts"`   // knots
	VerticalSpeed float64   `json:"vertical_speed_fpm"` // feet per minute
}

// Age returns how old the sample is relative to now.
func (s TelemetrySample) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}
