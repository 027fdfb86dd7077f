// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Encoder encodes IR link packets for transmission.
// Handles CBOR encoding, byte stuffing, and CRC calculation.
type Encoder struct{}

// NewEncoder creates a new packet encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a Packet to wire format.
func (e *Encoder) Encode(p *Packet) ([]byte, error) {
	return EncodePacket(p.Address(), p.Type(), p.PayloadMap())
}

// EncodePacket creates a complete wire-formatted packet.
// Returns the packet bytes ready for transmission, including framing and byte stuffing.
func EncodePacket(address uint64, msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(msgType, payloadMap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}

	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	// length byte + 8 address bytes + payload; this is what gets CRC'd and stuffed
	data := make([]byte, 1+AddressSize+len(cborPayload), 1+AddressSize+len(cborPayload)+2)
	data[0] = uint8(len(cborPayload))
	binary.LittleEndian.PutUint64(data[1:9], address)
	copy(data[9:], cborPayload)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc&0xFF))

	stuffed := stuffBytes(data)

	packet := make([]byte, 0, len(stuffed)+2)
	packet = append(packet, StartByte)
	packet = append(packet, stuffed...)
	packet = append(packet, EndByte)

	return packet, nil
}

// MustEncodePacket encodes an existing Packet struct to wire format.
// Panics on encoding error (use Encoder.Encode for error handling).
func MustEncodePacket(p *Packet) []byte {
	data, err := EncodePacket(p.Address(), p.Type(), p.PayloadMap())
	if err != nil {
		panic(fmt.Sprintf("irlink: encode error: %v", err))
	}
	return data
}

// DecodePacket decodes one complete wire-formatted packet.
func DecodePacket(data []byte) (*Packet, error) {
	d := NewDecoder()
	for _, b := range data {
		p, err := d.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: incomplete packet (%d bytes)", ErrFraming, len(data))
}

// encodeCBORPayload creates the CBOR-encoded payload for a message.
func encodeCBORPayload(msgType uint8, payloadMap map[int]interface{}) ([]byte, error) {
	var msg interface{}
	if len(payloadMap) == 0 {
		msg = []interface{}{uint64(msgType), nil}
	} else {
		msg = []interface{}{uint64(msgType), payloadMap}
	}
	return cbor.Marshal(msg)
}

// stuffBytes applies byte stuffing to escape special bytes.
// Special bytes (START, END, ESC) are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
