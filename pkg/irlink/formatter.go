// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"fmt"
	"time"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	msgType := FormatMessageType(p.Type())

	result := fmt.Sprintf("[%s] %s (0x%02X) addr=%016X len=%d\n", timestamp, msgType, p.Type(), p.address, p.length)
	result += FormatPayloadMap(p.Type(), p.PayloadMap())

	return result
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	// Configuration Commands (0x10-0x1F)
	case MsgCaptureConfig:
		return "CAPTURE_CONFIG"
	case MsgDiscoveryRequest:
		return "DISCOVERY_REQUEST"

	// Control Commands (0x20-0x2F)
	case MsgTransmitFrame:
		return "TRANSMIT_FRAME"
	case MsgPingRequest:
		return "PING_REQUEST"

	// Data (0x30-0x3F)
	case MsgFrameCaptured:
		return "FRAME_CAPTURED"
	case MsgTransmitDone:
		return "TRANSMIT_DONE"
	case MsgDeviceAnnounce:
		return "DEVICE_ANNOUNCE"
	case MsgPingResponse:
		return "PING_RESPONSE"

	// Errors (0xE0-0xEF)
	case MsgErrorInvalidCmd:
		return "ERROR_INVALID_CMD"
	case MsgErrorTransmitBusy:
		return "ERROR_TRANSMIT_BUSY"

	default:
		return "UNKNOWN"
	}
}

// FormatPayloadMap formats the CBOR payload map based on message type
func FormatPayloadMap(msgType uint8, m map[int]interface{}) string {
	switch msgType {
	case MsgPingRequest, MsgDiscoveryRequest, MsgErrorTransmitBusy:
		return "  (no payload)\n"

	case MsgPingResponse:
		// 0 => uptime-ms
		uptime, _ := GetMapUint(m, 0)
		return fmt.Sprintf("  Uptime: %s\n", formatDuration(uptime))

	case MsgCaptureConfig:
		// 0 => enabled (bool), 1 => variant
		enabled, _ := GetMapBool(m, 0)
		variant, _ := GetMapString(m, 1)
		enabledStr := "Disabled"
		if enabled {
			enabledStr = "Enabled"
		}
		return fmt.Sprintf("  Capture: %s, Variant: %s\n", enabledStr, variant)

	case MsgTransmitFrame:
		// 0 => codes, 1 => repeat
		repeat, _ := GetMapUint(m, 1)
		return fmt.Sprintf("  Codes: %s, Repeat: %d\n", formatCodeBytes(m), repeat)

	case MsgFrameCaptured:
		// 0 => codes, 1 => timestamp
		timestamp, _ := GetMapUint(m, 1)
		return fmt.Sprintf("  Codes: %s, Time=%d ms\n", formatCodeBytes(m), timestamp)

	case MsgTransmitDone:
		// 0 => code-count, 1 => duration-ms
		count, _ := GetMapUint(m, 0)
		duration, _ := GetMapUint(m, 1)
		return fmt.Sprintf("  Sent: %d codes in %d ms\n", count, duration)

	case MsgDeviceAnnounce:
		// 0 => can-receive, 1 => can-transmit
		rx, _ := GetMapBool(m, 0)
		tx, _ := GetMapBool(m, 1)
		return fmt.Sprintf("  Receive: %s, Transmit: %s\n", yesNo(rx), yesNo(tx))

	case MsgErrorInvalidCmd:
		// 0 => error-code
		code, _ := GetMapInt(m, 0)
		codeStr := "Unknown"
		switch code {
		case ErrorCodeInvalidParameter:
			codeStr = "Invalid parameter value"
		case ErrorCodeInvalidSymbol:
			codeStr = "Invalid code symbol"
		case ErrorCodeUnsupported:
			codeStr = "Unsupported variant"
		}
		return fmt.Sprintf("  Error Code: %d (%s)\n", code, codeStr)

	default:
		if len(m) == 0 {
			return "  (no payload)\n"
		}
		return fmt.Sprintf("  Payload: %v\n", m)
	}
}

// formatCodeBytes renders the code sequence in key 0 in text form
func formatCodeBytes(m map[int]interface{}) string {
	raw, ok := GetMapBytes(m, 0)
	if !ok {
		return "(missing)"
	}
	codes, err := BytesToCodes(raw)
	if err != nil {
		return fmt.Sprintf("% X (%v)", raw, err)
	}
	return fmt.Sprintf("%s (%d)", aircode.FormatCodes(codes), len(codes))
}

func formatDuration(ms uint64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
