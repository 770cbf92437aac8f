package simconnect

import (
	"fmt"

	"github.com/eytandecker/skytour/internal/telemetry"
)

// TelemetryPayloadSize is the byte length of a TelemetrySimVars frame.
var TelemetryPayloadSize = payloadSize(TelemetrySimVars)

func payloadSize(vars []SimVarDef) int {
	n := 0
	for _, v := range vars {
		n += v.DataType.Size()
	}
	return n
}

// ParseTelemetryPayload decodes a SimObjectData payload laid out in
// TelemetrySimVars order into a raw reading. Units match the definition:
// feet, degrees and knots.
func ParseTelemetryPayload(data []byte) (telemetry.Reading, error) {
	if len(data) < TelemetryPayloadSize {
		return telemetry.Reading{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortPayload, len(data), TelemetryPayloadSize)
	}

	vals := make([]float64, len(TelemetrySimVars))
	offset := 0
	for i, sv := range TelemetrySimVars {
		v, err := ParseSimVarValue(data[offset:], sv.DataType)
		if err != nil {
			return telemetry.Reading{}, fmt.Errorf("parse %s: %w", sv.Name, err)
		}
		vals[i] = v.(float64)
		offset += sv.DataType.Size()
	}

	return telemetry.Reading{
		Latitude:      vals[0],
		Longitude:     vals[1],
		AltitudeMSL:   vals[2],
		AltitudeAGL:   vals[3],
		Heading:       vals[4],
		GroundSpeed:   vals[5],
		VerticalSpeed: vals[6],
		AltitudeUnit:  telemetry.Feet,
		HeadingUnit:   telemetry.Degrees,
		SpeedUnit:     telemetry.Knots,
	}, nil
}
