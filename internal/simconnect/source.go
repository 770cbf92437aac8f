package simconnect

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eytandecker/skytour/internal/telemetry"
	"github.com/eytandecker/skytour/pkg/types"
)

// Source is a request/response telemetry.Source backed by a SimConnect
// client. It connects lazily, registers the telemetry data definition once
// per connection and drops the connection after any transport error so the
// next Poll reconnects.
type Source struct {
	client   *Client
	registry *SimVarRegistry
	logger   *slog.Logger
	now      func() time.Time
	connect  func(ctx context.Context) error

	mu         sync.Mutex
	registered bool
}

var _ telemetry.Source = (*Source)(nil)

// NewSource creates a Source using client.
func NewSource(client *Client, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:   client,
		registry: NewSimVarRegistry(),
		logger:   logger.With("component", "simconnect"),
		now:      time.Now,
		connect:  client.Connect,
	}
}

// Poll requests one telemetry frame and waits for the matching response.
func (s *Source) Poll(ctx context.Context) (telemetry.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		return telemetry.Reading{}, err
	}

	if err := s.client.RequestData(DefIDTelemetry, ObjectIDUser, ReqIDTelemetry); err != nil {
		return telemetry.Reading{}, s.dropConnection("request data", err)
	}

	for {
		h, data, err := s.client.ReadMessage(ctx)
		if err != nil {
			return telemetry.Reading{}, s.dropConnection("read response", err)
		}

		switch h.Type {
		case MsgSimObjectData:
			if h.ID != ReqIDTelemetry {
				continue
			}
			r, err := ParseTelemetryPayload(data)
			if err != nil {
				return telemetry.Reading{}, fmt.Errorf("%w: %v", telemetry.ErrMalformed, err)
			}
			r.Timestamp = s.now()
			return r, nil
		case MsgException:
			var code uint32
			if len(data) >= 4 {
				code = binary.LittleEndian.Uint32(data[:4])
			}
			return telemetry.Reading{}, fmt.Errorf("%w: code %d", ErrSimException, code)
		default:
			s.logger.Debug("ignoring message", "type", h.Type, "id", h.ID)
		}
	}
}

// Close shuts down the underlying connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = false
	return s.client.Close()
}

func (s *Source) ensureConnected(ctx context.Context) error {
	if s.client.State() != StateConnected {
		s.registered = false
		if err := s.connect(ctx); err != nil {
			return &types.SimulatorError{Op: "connect", Err: err, Recoverable: true}
		}
		s.logger.Info("connected to simulator", "host", s.client.config.Host, "port", s.client.config.Port)
	}
	if s.registered {
		return nil
	}

	for _, sv := range TelemetrySimVars {
		if err := s.registry.Validate(sv); err != nil {
			return err
		}
		if err := s.client.AddToDataDefinition(DefIDTelemetry, sv); err != nil {
			return s.dropConnection("register "+sv.Name, err)
		}
	}
	s.registered = true
	return nil
}

func (s *Source) dropConnection(op string, err error) error {
	s.registered = false
	if cerr := s.client.Close(); cerr != nil && !errors.Is(cerr, ErrNotConnected) {
		s.logger.Debug("close after failure", "error", cerr)
	}
	return &types.SimulatorError{Op: op, Err: err, Recoverable: true}
}
