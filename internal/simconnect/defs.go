package simconnect

// TelemetrySimVars is the ordered data definition for one telemetry frame.
// The order fixes the byte layout of SimObjectData responses.
var TelemetrySimVars = []SimVarDef{
	PlaneLatitude, PlaneLongitude, PlaneAltitude, PlaneAltAboveGround,
	PlaneHeadingTrue, GroundVelocity, VerticalSpeed,
}

const (
	DefIDTelemetry uint32 = 1
	ReqIDTelemetry uint32 = 1
	ObjectIDUser   uint32 = 0 // SIMCONNECT_OBJECT_ID_USER
)
