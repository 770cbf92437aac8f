package types

import (
	"errors"
	"fmt"
)

// SimulatorError reports a failed exchange with the flight simulator.
type SimulatorError struct {
	Op          string // e.g. "connect", "request telemetry"
	Err         error
	Recoverable bool // a later attempt may succeed without operator action
}

func (e *SimulatorError) Error() string {
	return fmt.Sprintf("simulator %s: %v", e.Op, e.Err)
}

func (e *SimulatorError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether err wraps a recoverable SimulatorError.
func Recoverable(err error) bool {
	var se *SimulatorError
	return errors.As(err, &se) && se.Recoverable
}
