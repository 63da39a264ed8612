package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/jeongseonghan/iqmodem/internal/modem"
)

// Frame layout constants
const (
	Magic          byte = 0xA5
	HeaderSize          = 5
	CRCSize             = 4
	MaxPayloadSize      = 4096
)

// Frame errors
var (
	ErrFrameTooShort = errors.New("frame too short")
	ErrBadMagic      = errors.New("bad frame magic")
	ErrTruncated     = errors.New("frame truncated")
	ErrCRCMismatch   = errors.New("frame CRC mismatch")
	ErrPayloadSize   = errors.New("payload too large")
)

// Frame carries one burst of payload over the modem. The header records the
// modulation the burst was sent with.
// Format: [Magic(1B)][Scheme(1B)][BPS(1B)][PayloadLen(2B)][Payload][CRC-32(4B)]
type Frame struct {
	Scheme     byte
	BPS        byte
	PayloadLen uint16
	Payload    []byte
}

// NewFrame creates a frame for payload sent with mod.
func NewFrame(mod modem.Modulation, payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadSize, len(payload), MaxPayloadSize)
	}
	return &Frame{
		Scheme:     byte(mod.Scheme),
		BPS:        byte(mod.BitsPerSymbol),
		PayloadLen: uint16(len(payload)),
		Payload:    payload,
	}, nil
}

// Modulation returns the modulation recorded in the header.
func (f *Frame) Modulation() modem.Modulation {
	return modem.Modulation{Scheme: modem.Scheme(f.Scheme), BitsPerSymbol: int(f.BPS)}
}

// Len returns the encoded frame size in bytes.
func (f *Frame) Len() int {
	return HeaderSize + int(f.PayloadLen) + CRCSize
}

// Encode serializes the frame to bytes with CRC-32.
func (f *Frame) Encode() []byte {
	totalLen := f.Len()
	buf := make([]byte, totalLen)

	buf[0] = Magic
	buf[1] = f.Scheme
	buf[2] = f.BPS
	binary.BigEndian.PutUint16(buf[3:5], f.PayloadLen)

	if f.PayloadLen > 0 {
		copy(buf[HeaderSize:], f.Payload[:f.PayloadLen])
	}

	// CRC-32 over header + payload
	checksum := crc32.ChecksumIEEE(buf[:HeaderSize+int(f.PayloadLen)])
	binary.BigEndian.PutUint32(buf[totalLen-CRCSize:], checksum)

	return buf
}

// DecodeFrame deserializes bytes into a Frame, verifying magic and CRC-32.
// Bytes after the frame are ignored.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize+CRCSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}
	if data[0] != Magic {
		return nil, fmt.Errorf("%w: 0x%02x", ErrBadMagic, data[0])
	}

	f := &Frame{
		Scheme:     data[1],
		BPS:        data[2],
		PayloadLen: binary.BigEndian.Uint16(data[3:5]),
	}

	expectedLen := f.Len()
	if len(data) < expectedLen {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTruncated, len(data), expectedLen)
	}

	expectedCRC := binary.BigEndian.Uint32(data[expectedLen-CRCSize : expectedLen])
	actualCRC := crc32.ChecksumIEEE(data[:HeaderSize+int(f.PayloadLen)])
	if expectedCRC != actualCRC {
		return nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrCRCMismatch, expectedCRC, actualCRC)
	}

	if f.PayloadLen > 0 {
		f.Payload = make([]byte, f.PayloadLen)
		copy(f.Payload, data[HeaderSize:HeaderSize+int(f.PayloadLen)])
	}

	return f, nil
}
