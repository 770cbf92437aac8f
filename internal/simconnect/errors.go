package simconnect

import "errors"

var (
	ErrNotConnected   = errors.New("simconnect: not connected")
	ErrInvalidSimVar  = errors.New("simconnect: invalid simvar")
	ErrShortPayload   = errors.New("simconnect: payload too short")
	ErrSimException   = errors.New("simconnect: simulator reported an exception")
	ErrFrameTooLarge  = errors.New("simconnect: frame exceeds maximum size")
)
