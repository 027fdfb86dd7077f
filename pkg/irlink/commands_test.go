// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"testing"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

func TestNewCaptureConfig(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		variant string
	}{
		{"enable structured", true, "structured"},
		{"enable packed", true, "packed"},
		{"disable", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCaptureConfig(0x1234, tt.enabled, tt.variant)
			if p.Type() != MsgCaptureConfig {
				t.Errorf("type = 0x%02X, want 0x%02X", p.Type(), MsgCaptureConfig)
			}
			enabled, ok := GetMapBool(p.PayloadMap(), 0)
			if !ok || enabled != tt.enabled {
				t.Errorf("enabled = %v (%v), want %v", enabled, ok, tt.enabled)
			}
			variant, ok := GetMapString(p.PayloadMap(), 1)
			if !ok || variant != tt.variant {
				t.Errorf("variant = %q (%v), want %q", variant, ok, tt.variant)
			}
		})
	}
}

func TestNewCaptureConfig_RoundTrip(t *testing.T) {
	original := NewCaptureConfig(0x0102030405060708, true, aircode.PackedBytes.Name())

	decoded, err := DecodePacket(MustEncodePacket(original))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if decoded.Type() != MsgCaptureConfig {
		t.Errorf("type = 0x%02X", decoded.Type())
	}
	variant, _ := GetMapString(decoded.PayloadMap(), 1)
	if _, err := aircode.LookupVariant(variant); err != nil {
		t.Errorf("variant %q should resolve: %v", variant, err)
	}
}

func TestNewPingRequest(t *testing.T) {
	p := NewPingRequest(0xABCD)
	if p.Type() != MsgPingRequest {
		t.Errorf("type = 0x%02X, want 0x%02X", p.Type(), MsgPingRequest)
	}
	if p.Address() != 0xABCD {
		t.Errorf("address = 0x%X", p.Address())
	}
	if len(p.PayloadMap()) != 0 {
		t.Errorf("expected empty payload, got %v", p.PayloadMap())
	}
}

func TestNewDiscoveryRequest_RoundTrip(t *testing.T) {
	decoded, err := DecodePacket(MustEncodePacket(NewDiscoveryRequest(AddressBroadcast)))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if decoded.Type() != MsgDiscoveryRequest || !decoded.IsBroadcast() {
		t.Errorf("decoded %s", FormatPacket(decoded))
	}
}

func TestNewTransmitFrame_RoundTrip(t *testing.T) {
	c := aircode.Controller{
		Mode:        aircode.ModeCold,
		On:          true,
		Fan:         aircode.FanLevel2,
		Temperature: aircode.MustTemperature(24),
	}
	frame := aircode.Structured.Encode(c)

	decoded, err := DecodePacket(MustEncodePacket(NewTransmitFrame(0x42, frame, 2)))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if errs := ValidatePacket(decoded); len(errs) != 0 {
		t.Errorf("validation errors: %v", errs)
	}

	repeat, _ := GetMapUint(decoded.PayloadMap(), 1)
	if repeat != 2 {
		t.Errorf("repeat = %d, want 2", repeat)
	}

	codes, err := decoded.Codes()
	if err != nil {
		t.Fatalf("Codes failed: %v", err)
	}
	got, err := aircode.Decode(codes)
	if err != nil {
		t.Fatalf("aircode.Decode failed: %v", err)
	}
	if got != c {
		t.Errorf("controller = %+v, want %+v", got, c)
	}
}

func TestNewFrameCaptured_PackedRoundTrip(t *testing.T) {
	p := aircode.NewPacked()
	p.SetMode(aircode.ModeHot)
	p.SetPower(true)
	p.SetTemperature(aircode.MustTemperature(22))

	decoded, err := DecodePacket(MustEncodePacket(NewFrameCaptured(0x42, p.Encode(), 1000)))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	codes, err := decoded.Codes()
	if err != nil {
		t.Fatalf("Codes failed: %v", err)
	}
	got, err := aircode.DecodePacked(codes)
	if err != nil {
		t.Fatalf("DecodePacked failed: %v", err)
	}
	if got.Bytes() != p.Bytes() {
		t.Errorf("bytes = % X, want % X", got.Bytes(), p.Bytes())
	}
}

func TestNewTransmitDone(t *testing.T) {
	p := NewTransmitDone(0x01, 140, 250)
	count, _ := GetMapUint(p.PayloadMap(), 0)
	duration, _ := GetMapUint(p.PayloadMap(), 1)
	if count != 140 || duration != 250 {
		t.Errorf("count = %d, duration = %d", count, duration)
	}
}

func TestNewDeviceAnnounce_RoundTrip(t *testing.T) {
	decoded, err := DecodePacket(MustEncodePacket(NewDeviceAnnounce(0x99, true, true)))
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	rx, _ := GetMapBool(decoded.PayloadMap(), 0)
	tx, _ := GetMapBool(decoded.PayloadMap(), 1)
	if !rx || !tx {
		t.Errorf("capabilities = %v/%v, want true/true", rx, tx)
	}
}

func TestNewPingResponse(t *testing.T) {
	p := NewPingResponse(0x01, 3600000)
	uptime, ok := GetMapUint(p.PayloadMap(), 0)
	if !ok || uptime != 3600000 {
		t.Errorf("uptime = %d (%v)", uptime, ok)
	}
	if got := FormatPayloadMap(p.Type(), p.PayloadMap()); got != "  Uptime: 1h0m0s\n" {
		t.Errorf("FormatPayloadMap = %q", got)
	}
}
