package simconnect

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimVarValue(t *testing.T) {
	f64 := func(v float64) []byte {
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
	}
	i32 := func(v uint32) []byte {
		return binary.LittleEndian.AppendUint32(nil, v)
	}

	tests := []struct {
		name    string
		data    []byte
		dt      DataType
		want    any
		wantErr bool
	}{
		{name: "float64 latitude", data: f64(29.4241), dt: DataTypeFloat64, want: 29.4241},
		{name: "float64 negative longitude", data: f64(-98.4936), dt: DataTypeFloat64, want: -98.4936},
		{name: "int32 on ground", data: i32(1), dt: DataTypeInt32, want: int32(1)},
		{name: "int32 negative", data: i32(0xFFFFFFFF), dt: DataTypeInt32, want: int32(-1)},
		{name: "float64 insufficient bytes", data: make([]byte, 4), dt: DataTypeFloat64, wantErr: true},
		{name: "int32 insufficient bytes", data: make([]byte, 2), dt: DataTypeInt32, wantErr: true},
		{name: "empty data", data: nil, dt: DataTypeFloat64, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSimVarValue(tt.data, tt.dt)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrShortPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimVarRegistry(t *testing.T) {
	registry := NewSimVarRegistry()

	t.Run("telemetry vars are registered", func(t *testing.T) {
		for _, sv := range TelemetrySimVars {
			def, ok := registry.Get(sv.Name)
			require.True(t, ok, sv.Name)
			assert.Equal(t, sv, def)
		}
	})

	t.Run("unknown simvar rejected", func(t *testing.T) {
		err := registry.Validate(SimVarDef{Name: "NOT A REAL VAR", Unit: "feet"})
		assert.ErrorIs(t, err, ErrInvalidSimVar)
	})

	t.Run("unit mismatch rejected", func(t *testing.T) {
		bad := PlaneAltAboveGround
		bad.Unit = "meters"
		err := registry.Validate(bad)
		assert.ErrorIs(t, err, ErrInvalidSimVar)
	})

	t.Run("known var validates", func(t *testing.T) {
		assert.NoError(t, registry.Validate(PlaneLatitude))
		assert.NoError(t, registry.Validate(SimOnGround))
	})
}
