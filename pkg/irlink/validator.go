// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"fmt"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyMissingCodes AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyInvalidSymbol
	AnomalyInvalidRepeat
	AnomalyInvalidValue
	AnomalyCRCError
	AnomalyDecodeError
)

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket validates packet structure and detects anomalies
// Returns a slice of validation errors (empty if packet is valid)
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}

	if err := p.ParseError(); err != nil {
		return append(errors, ValidationError{
			Type:    AnomalyDecodeError,
			Message: fmt.Sprintf("CBOR payload unreadable: %v", err),
			Details: map[string]interface{}{"error": err.Error()},
		})
	}

	switch p.Type() {
	case MsgFrameCaptured:
		errors = append(errors, validateCodes(p)...)
	case MsgTransmitFrame:
		errors = append(errors, validateCodes(p)...)
		errors = append(errors, validateRepeat(p)...)
	case MsgDeviceAnnounce:
		errors = append(errors, validateDeviceAnnounce(p)...)
	}

	return errors
}

// validateCodes checks the code sequence of FRAME_CAPTURED and TRANSMIT_FRAME
func validateCodes(p *Packet) []ValidationError {
	raw, ok := GetMapBytes(p.PayloadMap(), 0)
	if !ok {
		return []ValidationError{{
			Type:    AnomalyMissingCodes,
			Message: fmt.Sprintf("%s payload has no codes", FormatMessageType(p.Type())),
			Details: map[string]interface{}{"key": 0},
		}}
	}

	errors := []ValidationError{}

	if len(raw) != aircode.FrameLength {
		errors = append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("Frame length %d (expected %d codes)", len(raw), aircode.FrameLength),
			Details: map[string]interface{}{"length": len(raw), "expected": aircode.FrameLength},
		})
	}

	for i, b := range raw {
		if !aircode.Code(b).Valid() {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidSymbol,
				Message: fmt.Sprintf("Invalid code byte 0x%02X at offset %d", b, i),
				Details: map[string]interface{}{"offset": i, "value": b},
			})
			break
		}
	}

	return errors
}

// validateRepeat checks the TRANSMIT_FRAME repeat count
func validateRepeat(p *Packet) []ValidationError {
	repeat, ok := GetMapUint(p.PayloadMap(), 1)
	if ok && repeat >= 1 && repeat <= MaxRepeat {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidRepeat,
		Message: fmt.Sprintf("Invalid repeat=%d (valid 1-%d)", repeat, MaxRepeat),
		Details: map[string]interface{}{"repeat": repeat, "max": MaxRepeat},
	}}
}

// validateDeviceAnnounce validates DEVICE_ANNOUNCE packet
func validateDeviceAnnounce(p *Packet) []ValidationError {
	// End-of-discovery marker uses stateless address with no capabilities
	if p.IsStateless() {
		return nil
	}

	canReceive, okRx := GetMapBool(p.PayloadMap(), 0)
	canTransmit, okTx := GetMapBool(p.PayloadMap(), 1)
	if !okRx || !okTx {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: "DEVICE_ANNOUNCE missing capability flags",
			Details: map[string]interface{}{"can_receive": okRx, "can_transmit": okTx},
		}}
	}
	if !canReceive && !canTransmit {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: "DEVICE_ANNOUNCE bridge can neither receive nor transmit",
			Details: map[string]interface{}{"can_receive": false, "can_transmit": false},
		}}
	}
	return nil
}
