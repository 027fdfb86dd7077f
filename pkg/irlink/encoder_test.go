// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"bytes"
	"testing"
)

// payloadValuesEqual compares payload values accounting for CBOR type coercion.
// CBOR may decode uint64 as int64 or vice versa.
func payloadValuesEqual(expected, actual interface{}) bool {
	switch e := expected.(type) {
	case uint64:
		switch a := actual.(type) {
		case uint64:
			return e == a
		case int64:
			return a >= 0 && uint64(a) == e
		}
	case int64:
		switch a := actual.(type) {
		case int64:
			return e == a
		case uint64:
			return e >= 0 && uint64(e) == a
		}
	case bool:
		if a, ok := actual.(bool); ok {
			return e == a
		}
	case string:
		if a, ok := actual.(string); ok {
			return e == a
		}
	case []byte:
		if a, ok := actual.([]byte); ok {
			return bytes.Equal(e, a)
		}
	}
	return false
}

func TestEncodePacket_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		address    uint64
		msgType    uint8
		payloadMap map[int]interface{}
	}{
		{
			name:       "ping request with no payload",
			address:    0x0102030405060708,
			msgType:    MsgPingRequest,
			payloadMap: nil,
		},
		{
			name:    "frame captured",
			address: 0x1122334455667788,
			msgType: MsgFrameCaptured,
			payloadMap: map[int]interface{}{
				0: CodesToBytes(defaultFrameCodes()), // codes
				1: uint64(12345),                     // timestamp
			},
		},
		{
			name:    "transmit frame",
			address: AddressBroadcast,
			msgType: MsgTransmitFrame,
			payloadMap: map[int]interface{}{
				0: CodesToBytes(defaultFrameCodes()),
				1: uint64(3), // repeat
			},
		},
		{
			name:    "capture config",
			address: 0xAABBCCDDEEFF0011,
			msgType: MsgCaptureConfig,
			payloadMap: map[int]interface{}{
				0: true,
				1: "packed",
			},
		},
		{
			name:    "end of discovery",
			address: AddressStateless,
			msgType: MsgDeviceAnnounce,
			payloadMap: map[int]interface{}{
				0: false,
				1: false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodePacket(tt.address, tt.msgType, tt.payloadMap)
			if err != nil {
				t.Fatalf("EncodePacket failed: %v", err)
			}

			// Verify framing
			if encoded[0] != StartByte {
				t.Errorf("packet should start with StartByte (0x%02X), got 0x%02X", StartByte, encoded[0])
			}
			if encoded[len(encoded)-1] != EndByte {
				t.Errorf("packet should end with EndByte (0x%02X), got 0x%02X", EndByte, encoded[len(encoded)-1])
			}

			decoder := NewDecoder()
			var decoded *Packet
			for _, b := range encoded {
				p, err := decoder.DecodeByte(b)
				if err != nil {
					t.Fatalf("Decoder error: %v", err)
				}
				if p != nil {
					decoded = p
				}
			}

			if decoded == nil {
				t.Fatal("Decoder did not produce a packet")
			}
			if decoded.Address() != tt.address {
				t.Errorf("address mismatch: got 0x%016X, want 0x%016X", decoded.Address(), tt.address)
			}
			if decoded.Type() != tt.msgType {
				t.Errorf("msgType mismatch: got 0x%02X, want 0x%02X", decoded.Type(), tt.msgType)
			}

			decodedPayload := decoded.PayloadMap()
			if tt.payloadMap == nil {
				if len(decodedPayload) > 0 {
					t.Errorf("expected nil payload, got %v", decodedPayload)
				}
				return
			}
			for key, expectedValue := range tt.payloadMap {
				actualValue, ok := decodedPayload[key]
				if !ok {
					t.Errorf("missing payload key %d", key)
					continue
				}
				if !payloadValuesEqual(expectedValue, actualValue) {
					t.Errorf("payload[%d] mismatch: got %v (%T), want %v (%T)",
						key, actualValue, actualValue, expectedValue, expectedValue)
				}
			}
		})
	}
}

func TestStuffBytes(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		expect []byte
	}{
		{
			name:   "no special bytes",
			input:  []byte{0x01, 0x02, 0x03},
			expect: []byte{0x01, 0x02, 0x03},
		},
		{
			name:   "escape start byte",
			input:  []byte{0x01, StartByte, 0x03},
			expect: []byte{0x01, EscByte, StartByte ^ EscXor, 0x03},
		},
		{
			name:   "escape end byte",
			input:  []byte{0x01, EndByte, 0x03},
			expect: []byte{0x01, EscByte, EndByte ^ EscXor, 0x03},
		},
		{
			name:   "escape escape byte",
			input:  []byte{0x01, EscByte, 0x03},
			expect: []byte{0x01, EscByte, EscByte ^ EscXor, 0x03},
		},
		{
			name:  "consecutive special bytes",
			input: []byte{StartByte, EndByte, EscByte, StartByte},
			expect: []byte{
				EscByte, StartByte ^ EscXor,
				EscByte, EndByte ^ EscXor,
				EscByte, EscByte ^ EscXor,
				EscByte, StartByte ^ EscXor,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stuffBytes(tt.input)
			if !bytes.Equal(result, tt.expect) {
				t.Errorf("stuffBytes(%v) = %v, want %v", tt.input, result, tt.expect)
			}

			unstuffed, err := UnstuffBytes(result)
			if err != nil {
				t.Fatalf("UnstuffBytes error: %v", err)
			}
			if !bytes.Equal(unstuffed, tt.input) {
				t.Errorf("round-trip failed: got %v, want %v", unstuffed, tt.input)
			}
		})
	}
}

func TestUnstuffBytes_IncompleteEscape(t *testing.T) {
	if _, err := UnstuffBytes([]byte{0x01, 0x02, EscByte}); err == nil {
		t.Error("expected error for incomplete escape sequence, got nil")
	}
}

func TestEncodePacket_PayloadTooLarge(t *testing.T) {
	// Two full frames exceed the payload limit
	codes := CodesToBytes(defaultFrameCodes())
	payload := map[int]interface{}{
		0: append(append([]byte(nil), codes...), codes...),
		1: uint64(1),
	}

	if _, err := EncodePacket(0, MsgTransmitFrame, payload); err == nil {
		t.Error("expected error for oversized payload, got nil")
	}
}

func TestEncodePacket_FullFrameFits(t *testing.T) {
	p := NewTransmitFrame(0xFFFFFFFFFFFFFFFE, defaultFrameCodes(), MaxRepeat)
	if _, err := NewEncoder().Encode(p); err != nil {
		t.Fatalf("a full frame should fit in one packet: %v", err)
	}
}

func TestEncodePacket_ZeroLengthPayload(t *testing.T) {
	encoded, err := EncodePacket(0x1234567890ABCDEF, MsgPingRequest, nil)
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}

	unstuffed, err := UnstuffBytes(encoded[1 : len(encoded)-1])
	if err != nil {
		t.Fatalf("UnstuffBytes failed: %v", err)
	}

	// CBOR [msgType, nil] is small but not zero
	lengthByte := unstuffed[0]
	if lengthByte == 0 || lengthByte > 10 {
		t.Errorf("unexpected length byte for nil payload: %d", lengthByte)
	}
}

func TestEncodePacket_CBOREncodingError(t *testing.T) {
	// Channels cannot be encoded to CBOR
	payload := map[int]interface{}{0: make(chan int)}
	if _, err := EncodePacket(0, MsgPingResponse, payload); err == nil {
		t.Error("expected CBOR encoding error, got nil")
	}
}

func TestDecodePacket(t *testing.T) {
	encoded, err := EncodePacket(0x1234567890ABCDEF, MsgPingRequest, nil)
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}

	decoded, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if decoded.Address() != 0x1234567890ABCDEF {
		t.Errorf("address mismatch: got 0x%X", decoded.Address())
	}
	if decoded.Type() != MsgPingRequest {
		t.Errorf("type mismatch: got 0x%02X", decoded.Type())
	}
}

func TestDecodePacket_Incomplete(t *testing.T) {
	for _, data := range [][]byte{{}, {StartByte}, {StartByte, 0x03, 0x01}} {
		if _, err := DecodePacket(data); err == nil {
			t.Errorf("expected error for incomplete packet % X", data)
		}
	}
}

func TestMustEncodePacket(t *testing.T) {
	p := NewPacketWithPayload(0x1122334455667788, MsgTransmitDone, map[int]interface{}{
		0: uint64(70),
		1: uint64(95),
	})

	encoded := MustEncodePacket(p)

	if encoded[0] != StartByte || encoded[len(encoded)-1] != EndByte {
		t.Error("packet framing incorrect")
	}
}

func TestMustEncodePacket_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustEncodePacket should panic on oversized payload")
		}
	}()

	payload := map[int]interface{}{0: make([]byte, MaxPayloadSize)}
	MustEncodePacket(NewPacketWithPayload(0, MsgFrameCaptured, payload))
}

func TestEncodePacket_MessageTypeBoundary(t *testing.T) {
	encoded, err := EncodePacket(0x1234567890ABCDEF, 0xFF, nil)
	if err != nil {
		t.Fatalf("EncodePacket failed for msgType 0xFF: %v", err)
	}

	decoded, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if decoded.Type() != 0xFF {
		t.Errorf("msgType mismatch: got 0x%02X, want 0xFF", decoded.Type())
	}
}
