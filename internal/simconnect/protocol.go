package simconnect

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize      = 16
	ProtocolVersion = 4

	// MaxFrameSize bounds a single inbound frame so a corrupt size field
	// cannot trigger a huge allocation.
	MaxFrameSize = 64 * 1024

	MsgOpen              = 0x0001
	MsgClose             = 0x0002
	MsgRequestData       = 0x0003
	MsgSetDataDefinition = 0x0004
	MsgAddToDataDef      = 0x0005
	MsgSimObjectData     = 0x0100
	MsgException         = 0x0101
)

// Header is the fixed prefix of every SimConnect frame.
type Header struct {
	Size    uint32
	Version uint32
	Type    uint32
	ID      uint32
}

// PayloadSize returns the number of payload bytes following the header.
func (h Header) PayloadSize() int {
	if h.Size < HeaderSize {
		return 0
	}
	return int(h.Size - HeaderSize)
}

// EncodeHeader builds a 16-byte little-endian header. Size covers the
// header plus payloadSize bytes.
func EncodeHeader(msgType, msgID uint32, payloadSize int) []byte {
	buf := make([]byte, 0, HeaderSize)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(HeaderSize+payloadSize)) //nolint:gosec // payloads are bounded by MaxFrameSize
	buf = binary.LittleEndian.AppendUint32(buf, ProtocolVersion)
	buf = binary.LittleEndian.AppendUint32(buf, msgType)
	buf = binary.LittleEndian.AppendUint32(buf, msgID)
	return buf
}

// DecodeHeader parses a 16-byte little-endian header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: got %d bytes, need %d", len(data), HeaderSize)
	}
	h := Header{
		Size:    binary.LittleEndian.Uint32(data[0:4]),
		Version: binary.LittleEndian.Uint32(data[4:8]),
		Type:    binary.LittleEndian.Uint32(data[8:12]),
		ID:      binary.LittleEndian.Uint32(data[12:16]),
	}
	if h.Size < HeaderSize {
		return Header{}, fmt.Errorf("header size field %d smaller than header", h.Size)
	}
	if h.Size > MaxFrameSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, h.Size)
	}
	return h, nil
}
