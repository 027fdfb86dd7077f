// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package irlink implements the serial protocol spoken between a host and an
// infrared bridge: a receiver that classifies captured pulses into aircode
// codes and a transmitter that replays code sequences.
//
// Packets use Fusain framing: START and END delimiters, byte stuffing, a
// little-endian 64-bit bridge address and a CRC-16-CCITT over length,
// address and payload. The payload is a CBOR array [msg_type, payload_map].
package irlink

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPacketSize  = 128 // 14 overhead + 114 payload
	MaxPayloadSize = 114
	AddressSize    = 8
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Special addresses
const (
	AddressBroadcast = 0x0000000000000000 // All bridges
	AddressStateless = 0xFFFFFFFFFFFFFFFF // End-of-discovery marker
)

// Message types - Configuration Commands (Host → Bridge) 0x10-0x1F
const (
	MsgCaptureConfig    = 0x10
	MsgDiscoveryRequest = 0x1F
)

// Message types - Control Commands (Host → Bridge) 0x20-0x2F
const (
	MsgTransmitFrame = 0x20
	MsgPingRequest   = 0x2F
)

// Message types - Data (Bridge → Host) 0x30-0x3F
const (
	MsgFrameCaptured  = 0x30
	MsgTransmitDone   = 0x31
	MsgDeviceAnnounce = 0x35
	MsgPingResponse   = 0x3F
)

// Message types - Errors (Bridge → Host) 0xE0-0xEF
const (
	MsgErrorInvalidCmd   = 0xE0
	MsgErrorTransmitBusy = 0xE1
)

// Transmit limits
const (
	MaxRepeat = 8
)

// Error codes carried by ERROR_INVALID_CMD
const (
	ErrorCodeInvalidParameter = 1
	ErrorCodeInvalidSymbol    = 2
	ErrorCodeUnsupported      = 3
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateAddress
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
