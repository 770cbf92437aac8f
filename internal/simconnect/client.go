package simconnect

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds SimConnect client configuration.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
	AppName string
}

// ConnectionState represents the client's connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Client manages a TCP connection to SimConnect. Writes are serialized;
// reads are expected from a single goroutine at a time.
type Client struct {
	config Config
	conn   net.Conn
	state  atomic.Int32
	mu     sync.Mutex
	nextID atomic.Uint32
}

// NewClient creates a new SimConnect client.
func NewClient(cfg Config) *Client {
	c := &Client{config: cfg}
	c.state.Store(int32(StateDisconnected))
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Connect dials the simulator and sends the OPEN message.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
	dialer := net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("simconnect dial %s: %w", addr, err)
	}
	if err := c.connectWithConn(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// connectWithConn performs the handshake on an existing net.Conn, which
// lets tests drive the client over net.Pipe.
func (c *Client) connectWithConn(ctx context.Context, conn net.Conn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simconnect connect: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Store(int32(StateConnecting))
	c.conn = conn

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}

	if err := c.sendLocked(MsgOpen, append([]byte(c.config.AppName), 0)); err != nil {
		c.conn = nil
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("simconnect open: %w", err)
	}

	c.state.Store(int32(StateConnected))
	return nil
}

// Close sends a best-effort CLOSE message and shuts down the connection.
// Closing a disconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	_ = c.sendLocked(MsgClose, nil)

	err := c.conn.Close()
	c.conn = nil
	c.state.Store(int32(StateDisconnected))
	return err
}

// sendMessage frames and writes a message, returning the message id used.
func (c *Client) sendMessage(msgType uint32, payload []byte) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0, ErrNotConnected
	}
	id := c.nextID.Add(1)
	return id, c.writeFrame(msgType, id, payload)
}

func (c *Client) sendLocked(msgType uint32, payload []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.writeFrame(msgType, c.nextID.Add(1), payload)
}

// writeFrame writes header and payload in one call; caller holds c.mu.
func (c *Client) writeFrame(msgType, id uint32, payload []byte) error {
	frame := append(EncodeHeader(msgType, id, len(payload)), payload...)
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads the next complete frame. The ctx deadline, if any,
// bounds the read.
func (c *Client) ReadMessage(ctx context.Context) (Header, []byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return Header{}, nil, ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	}
	return readFrame(conn)
}

func readFrame(r io.Reader) (Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return Header{}, nil, fmt.Errorf("read header: %w", err)
	}

	h, err := DecodeHeader(headerBuf)
	if err != nil {
		return Header{}, nil, err
	}
	if h.PayloadSize() == 0 {
		return h, nil, nil
	}

	payload := make([]byte, h.PayloadSize())
	if _, err := io.ReadFull(r, payload); err != nil {
		return Header{}, nil, fmt.Errorf("read payload: %w", err)
	}
	return h, payload, nil
}

// AddToDataDefinition registers a SimVar under the given definition id.
//
// Payload layout: defID uint32, varName NUL-terminated, unitName
// NUL-terminated, dataType uint32.
func (c *Client) AddToDataDefinition(defID uint32, simvar SimVarDef) error {
	payload := make([]byte, 0, 4+len(simvar.Name)+1+len(simvar.Unit)+1+4)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	payload = append(payload, simvar.Name...)
	payload = append(payload, 0)
	payload = append(payload, simvar.Unit...)
	payload = append(payload, 0)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(simvar.DataType)) //nolint:gosec // DataType is a small enum value

	_, err := c.sendMessage(MsgAddToDataDef, payload)
	return err
}

// RequestData asks for one SimObjectData frame for the given definition.
//
// Payload layout: requestID, defID, objectID, each uint32.
func (c *Client) RequestData(defID, objectID, requestID uint32) error {
	payload := make([]byte, 0, 12)
	payload = binary.LittleEndian.AppendUint32(payload, requestID)
	payload = binary.LittleEndian.AppendUint32(payload, defID)
	payload = binary.LittleEndian.AppendUint32(payload, objectID)

	_, err := c.sendMessage(MsgRequestData, payload)
	return err
}
