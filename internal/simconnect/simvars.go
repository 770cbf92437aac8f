package simconnect

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType represents the SimConnect data type for a SimVar value.
type DataType int

const (
	DataTypeFloat64 DataType = iota
	DataTypeInt32
)

// Size returns the encoded width of the type in bytes.
func (d DataType) Size() int {
	if d == DataTypeInt32 {
		return 4
	}
	return 8
}

// SimVarDef names a simulation variable and the unit the simulator should
// report it in.
type SimVarDef struct {
	Name     string
	Unit     string
	DataType DataType
}

func float64Var(name, unit string) SimVarDef {
	return SimVarDef{Name: name, Unit: unit, DataType: DataTypeFloat64}
}

// Simulation variables read for the sightseeing telemetry sample.
var (
	PlaneLatitude       = float64Var("PLANE LATITUDE", "degrees")
	PlaneLongitude      = float64Var("PLANE LONGITUDE", "degrees")
	PlaneAltitude       = float64Var("PLANE ALTITUDE", "feet")
	PlaneAltAboveGround = float64Var("PLANE ALT ABOVE GROUND", "feet")
	PlaneHeadingTrue    = float64Var("PLANE HEADING DEGREES TRUE", "degrees")
	GroundVelocity      = float64Var("GROUND VELOCITY", "knots")
	VerticalSpeed       = float64Var("VERTICAL SPEED", "feet/minute")
	SimOnGround         = SimVarDef{Name: "SIM ON GROUND", Unit: "bool", DataType: DataTypeInt32}
)

// SimVarRegistry is the allowlist of SimVars this client will register.
type SimVarRegistry struct {
	vars map[string]SimVarDef
}

// NewSimVarRegistry creates a registry holding every known SimVar.
func NewSimVarRegistry() *SimVarRegistry {
	r := &SimVarRegistry{vars: make(map[string]SimVarDef)}
	for _, v := range append([]SimVarDef{SimOnGround}, TelemetrySimVars...) {
		r.vars[v.Name] = v
	}
	return r
}

// Get returns the SimVarDef for the given name, if it exists.
func (r *SimVarRegistry) Get(name string) (SimVarDef, bool) {
	def, ok := r.vars[name]
	return def, ok
}

// Validate checks that def is known and that its unit and type match the
// registered definition.
func (r *SimVarRegistry) Validate(def SimVarDef) error {
	known, ok := r.vars[def.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidSimVar, def.Name)
	}
	if known != def {
		return fmt.Errorf("%w: %s registered as %s/%d", ErrInvalidSimVar, def.Name, known.Unit, known.DataType)
	}
	return nil
}

// ParseSimVarValue decodes raw little-endian bytes into a typed value.
func ParseSimVarValue(data []byte, dt DataType) (any, error) {
	if len(data) < dt.Size() {
		return nil, fmt.Errorf("%w: data type %d needs %d bytes, got %d", ErrShortPayload, dt, dt.Size(), len(data))
	}
	switch dt {
	case DataTypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), nil
	case DataTypeInt32:
		return int32(binary.LittleEndian.Uint32(data[:4])), nil //nolint:gosec // intentional reinterpretation of binary-encoded signed int32
	default:
		return nil, fmt.Errorf("unsupported data type: %d", dt)
	}
}
