// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"errors"
	"fmt"
	"time"
)

// Link decode errors
var (
	ErrCRC     = errors.New("CRC mismatch")
	ErrFraming = errors.New("framing error")
)

// Decoder implements the IR link packet decoder state machine.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	state        int
	buffer       []byte
	bufferIndex  int
	escapeNext   bool
	addressBytes int // Counter for address bytes (0-7)
	payloadBytes int
	packet       *Packet
	rawBuffer    []byte // Accumulate raw bytes including framing
}

// NewDecoder creates a new protocol decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, MaxPacketSize),
		rawBuffer: make([]byte, 0, MaxPacketSize*2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.addressBytes = 0
	d.payloadBytes = 0
	d.escapeNext = false
	d.packet = nil
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the accumulated raw bytes since the last packet
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// fail resets the decoder and returns a framing error
func (d *Decoder) fail(format string, args ...interface{}) error {
	d.Reset()
	return fmt.Errorf("%w: %s", ErrFraming, fmt.Sprintf(format, args...))
}

// store appends an unstuffed byte to the CRC buffer
func (d *Decoder) store(b byte) error {
	if d.bufferIndex >= MaxPacketSize {
		return d.fail("buffer overflow: packet exceeds max size")
	}
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
	return nil
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the packet is incomplete.
// Returns an error if decoding fails; the decoder then waits for the next START.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	// Framing bytes are never stuffed, so they act regardless of escape state
	switch b {
	case StartByte:
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength
		return nil, nil
	case EndByte:
		return d.finish()
	case EscByte:
		if d.state != stateIdle {
			d.escapeNext = true
		}
		return nil, nil
	}

	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateIdle:
		// Waiting for START byte
		return nil, nil

	case stateLength:
		if b > MaxPayloadSize {
			return nil, d.fail("invalid length: %d (max %d)", b, MaxPayloadSize)
		}
		if err := d.store(b); err != nil {
			return nil, err
		}
		d.packet = &Packet{length: b}
		d.addressBytes = 0
		d.state = stateAddress
		return nil, nil

	case stateAddress:
		if err := d.store(b); err != nil {
			return nil, err
		}
		// Address is little-endian
		d.packet.address |= uint64(b) << (d.addressBytes * 8)
		d.addressBytes++
		if d.addressBytes >= AddressSize {
			d.payloadBytes = 0
			if d.packet.length == 0 {
				d.state = stateCRC1
			} else {
				d.state = statePayload
			}
		}
		return nil, nil

	case statePayload:
		if err := d.store(b); err != nil {
			return nil, err
		}
		d.payloadBytes++
		if d.payloadBytes >= int(d.packet.length) {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.packet.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.packet.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	case stateEnd:
		return nil, d.fail("expected END byte, got 0x%02X", b)

	default:
		return nil, d.fail("invalid state: %d", d.state)
	}
}

// finish validates a packet on END
func (d *Decoder) finish() (*Packet, error) {
	if d.state != stateEnd {
		return nil, d.fail("unexpected END byte in state %d", d.state)
	}

	packet := d.packet
	calculatedCRC := CalculateCRC(d.buffer[:d.bufferIndex])
	if packet.crc != calculatedCRC {
		err := fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRC, calculatedCRC, packet.crc)
		d.Reset()
		return nil, err
	}

	payloadStart := 1 + AddressSize
	packet.cborPayload = append([]byte(nil), d.buffer[payloadStart:d.bufferIndex]...)
	packet.timestamp = time.Now()

	d.Reset()
	return packet, nil
}
