// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import "github.com/Thermoquad/mistral/pkg/aircode"

// Command builder functions create Packet structs ready for encoding.
// These are convenience wrappers around NewPacketWithPayload that ensure
// correct payload key usage for each message type.

// NewCaptureConfig creates a CAPTURE_CONFIG packet (0x10).
// Enables or disables frame capture and names the frame variant the bridge
// should expect, which sets its marker timing.
func NewCaptureConfig(address uint64, enabled bool, variant string) *Packet {
	payload := map[int]interface{}{
		0: enabled,
		1: variant,
	}
	return NewPacketWithPayload(address, MsgCaptureConfig, payload)
}

// NewDiscoveryRequest creates a DISCOVERY_REQUEST packet (0x1F).
// Bridges respond with DEVICE_ANNOUNCE, followed by an end-of-discovery
// marker (DEVICE_ANNOUNCE from the stateless address).
func NewDiscoveryRequest(address uint64) *Packet {
	return NewPacketWithPayload(address, MsgDiscoveryRequest, nil)
}

// NewTransmitFrame creates a TRANSMIT_FRAME packet (0x20).
// The bridge sends the codes repeat times back to back.
func NewTransmitFrame(address uint64, codes []aircode.Code, repeat uint8) *Packet {
	payload := map[int]interface{}{
		0: CodesToBytes(codes),
		1: uint64(repeat),
	}
	return NewPacketWithPayload(address, MsgTransmitFrame, payload)
}

// NewPingRequest creates a PING_REQUEST packet (0x2F).
// Bridges respond with PING_RESPONSE containing uptime.
func NewPingRequest(address uint64) *Packet {
	return NewPacketWithPayload(address, MsgPingRequest, nil)
}

// NewFrameCaptured creates a FRAME_CAPTURED packet (0x30), as sent by a
// bridge when its receiver completes a frame.
func NewFrameCaptured(address uint64, codes []aircode.Code, timestampMs uint64) *Packet {
	payload := map[int]interface{}{
		0: CodesToBytes(codes),
		1: timestampMs,
	}
	return NewPacketWithPayload(address, MsgFrameCaptured, payload)
}

// NewTransmitDone creates a TRANSMIT_DONE packet (0x31).
func NewTransmitDone(address uint64, codeCount uint64, durationMs uint64) *Packet {
	payload := map[int]interface{}{
		0: codeCount,
		1: durationMs,
	}
	return NewPacketWithPayload(address, MsgTransmitDone, payload)
}

// NewDeviceAnnounce creates a DEVICE_ANNOUNCE packet (0x35).
func NewDeviceAnnounce(address uint64, canReceive, canTransmit bool) *Packet {
	payload := map[int]interface{}{
		0: canReceive,
		1: canTransmit,
	}
	return NewPacketWithPayload(address, MsgDeviceAnnounce, payload)
}

// NewPingResponse creates a PING_RESPONSE packet (0x3F).
func NewPingResponse(address uint64, uptimeMs uint64) *Packet {
	payload := map[int]interface{}{
		0: uptimeMs,
	}
	return NewPacketWithPayload(address, MsgPingResponse, payload)
}
