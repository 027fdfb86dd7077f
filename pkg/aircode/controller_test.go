// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"errors"
	"slices"
	"testing"
)

// Structured frame offsets
const (
	idxMode     = 1
	idxOn       = 4
	idxTemp     = 9
	idxTimer    = 13
	idxMagicA   = 26
	idxMagicC   = 33
	idxMagicD   = 48
	idxWiFi     = 51
	idxReserved = 52
	idxChecksum = 65
)

func TestController_EncodeDefault(t *testing.T) {
	var c Controller
	got := c.Encode()
	want := mustParse(t, defaultFrame)

	if len(got) != FrameLength {
		t.Fatalf("frame length = %d, want %d", len(got), FrameLength)
	}
	if !slices.Equal(got, want) {
		t.Errorf("default frame mismatch:\n got  %s\n want %s", FormatCodes(got), FormatCodes(want))
	}
	if c.Checksum() != 12 {
		t.Errorf("default checksum = %d, want 12", c.Checksum())
	}
}

func TestController_EncodeSample(t *testing.T) {
	got := sampleController.Encode()
	want := mustParse(t, sampleFrame)
	if !slices.Equal(got, want) {
		t.Errorf("sample frame mismatch:\n got  %s\n want %s", FormatCodes(got), FormatCodes(want))
	}
	if sampleController.Checksum() != 13 {
		t.Errorf("sample checksum = %d, want 13", sampleController.Checksum())
	}
}

func TestController_MarkerPositions(t *testing.T) {
	frame := sampleController.Encode()
	if frame[0] != CodeStart || frame[36] != CodeContinue || frame[69] != CodeEnd {
		t.Errorf("markers misplaced: %s", FormatCodes(frame))
	}
	for i, c := range frame {
		if i == 0 || i == 36 || i == 69 {
			continue
		}
		if c.IsMarker() {
			t.Errorf("marker %s at data index %d", c, i)
		}
	}
}

func TestController_CodesStopsEarly(t *testing.T) {
	var c Controller
	n := 0
	for range c.Codes() {
		n++
		if n == 10 {
			break
		}
	}
	if n != 10 {
		t.Errorf("expected to stop after 10 codes, got %d", n)
	}
}

func TestDecode_Default(t *testing.T) {
	got, err := Decode(mustParse(t, defaultFrame))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != (Controller{}) {
		t.Errorf("decoded default = %+v", got)
	}
}

func TestDecode_Sample(t *testing.T) {
	got, err := Decode(mustParse(t, sampleFrame))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != sampleController {
		t.Errorf("decoded = %+v\nwant %+v", got, sampleController)
	}
}

func TestDecode_RoundTripBoundaries(t *testing.T) {
	tests := []struct {
		name string
		c    Controller
	}{
		{"16°C", Controller{Temperature: MustTemperature(16)}},
		{"30°C", Controller{Temperature: MustTemperature(30)}},
		{"timer 0", Controller{Timer: TimerSetting{Enabled: true, HalfHours: 0}}},
		{"timer 48", Controller{Timer: TimerSetting{Enabled: true, HalfHours: 48}}},
		{"disabled timer keeps value", Controller{Timer: TimerSetting{HalfHours: 17}}},
		{"unknown swing", Controller{VSwing: SwingUnknown15, HSwing: SwingUnknown7}},
		{"hot everything on", Controller{
			Mode: ModeHot, On: true, Fan: FanLevel3, Swing: true, Sleep: true,
			Temperature: MustTemperature(27), Strong: true, Light: true, Anion: true,
			Dry: true, Ventilate: true, VSwing: SwingOn, HSwing: SwingOn,
			TemperatureDisplay: DisplayOutdoor, IFeel: true, WiFi: true, Econo: true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.c.Encode())
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tt.c {
				t.Errorf("round trip = %+v\nwant %+v", got, tt.c)
			}
		})
	}
}

func TestDecode_Length(t *testing.T) {
	frame := append(mustParse(t, defaultFrame), CodeShort)
	if _, err := Decode(frame); !errors.Is(err, ErrFrameLength) {
		t.Errorf("expected ErrFrameLength, got %v", err)
	}
}

func TestDecode_Truncated(t *testing.T) {
	frame := mustParse(t, sampleFrame)
	for n := 0; n < FrameLength; n++ {
		_, err := Decode(frame[:n])
		if !errors.Is(err, ErrEOF) {
			t.Errorf("Decode(frame[:%d]) error = %v, want ErrEOF", n, err)
		}
	}
}

func TestDecode_Markers(t *testing.T) {
	frame := mustParse(t, defaultFrame)
	tests := []struct {
		name  string
		index int
		code  Code
	}{
		{"start replaced by data", 0, CodeShort},
		{"start replaced by end", 0, CodeEnd},
		{"continue replaced by data", 36, CodeLong},
		{"continue replaced by start", 36, CodeStart},
		{"end replaced by data", 69, CodeShort},
		{"end replaced by continue", 69, CodeContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(withCode(frame, tt.index, tt.code))
			if !errors.Is(err, ErrInvalidMarker) {
				t.Errorf("expected ErrInvalidMarker, got %v", err)
			}
		})
	}
}

func TestDecode_Magic(t *testing.T) {
	frame := mustParse(t, defaultFrame)
	tests := []struct {
		name  string
		index int
		block uint8
	}{
		{"magic A first code", idxMagicA, MagicBlockA},
		{"magic A last code", idxMagicA + 6, MagicBlockA},
		{"magic C", idxMagicC + 1, MagicBlockC},
		{"magic D", idxMagicD + 2, MagicBlockD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(flip(frame, tt.index))
			var magicErr *MagicError
			if !errors.As(err, &magicErr) {
				t.Fatalf("expected MagicError, got %v", err)
			}
			if magicErr.Block != tt.block {
				t.Errorf("block = %d, want %d", magicErr.Block, tt.block)
			}
			if !errors.Is(err, ErrInvalidMagic) {
				t.Error("MagicError should match ErrInvalidMagic")
			}
		})
	}
}

func TestDecode_MagicMarkerInBlock(t *testing.T) {
	frame := withCode(mustParse(t, defaultFrame), idxMagicC, CodeEnd)
	var magicErr *MagicError
	if _, err := Decode(frame); !errors.As(err, &magicErr) || magicErr.Block != MagicBlockC {
		t.Errorf("expected MagicError block 2, got %v", err)
	}
}

func TestDecode_AlternateMagicA(t *testing.T) {
	// S S S L S L S -> S S S L L L S
	frame := flip(mustParse(t, sampleFrame), idxMagicA+4)
	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("alternate magic A should decode: %v", err)
	}
	if got != sampleController {
		t.Errorf("decoded = %+v", got)
	}
}

func TestDecode_RangeErrors(t *testing.T) {
	base := mustParse(t, defaultFrame)
	tests := []struct {
		name    string
		set     []int
		wantErr error
	}{
		{"mode 7", []int{idxMode, idxMode + 1, idxMode + 2}, ErrInvalidMode},
		{"mode 5", []int{idxMode, idxMode + 2}, ErrInvalidMode},
		{"temperature offset 15", []int{idxTemp, idxTemp + 1, idxTemp + 2, idxTemp + 3}, ErrInvalidTemperature},
		{"timer tens 3", []int{idxTimer + 1, idxTimer + 2}, ErrInvalidTimerSetting},
		{"timer units 10", []int{idxTimer + 5, idxTimer + 7}, ErrInvalidTimerSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := append([]Code(nil), base...)
			for _, i := range tt.set {
				frame[i] = CodeLong
			}
			_, err := Decode(frame)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecode_ReservedMarker(t *testing.T) {
	frame := withCode(mustParse(t, defaultFrame), idxReserved+3, CodeContinue)
	if _, err := Decode(frame); !errors.Is(err, ErrUnexpectedMarker) {
		t.Errorf("expected ErrUnexpectedMarker, got %v", err)
	}
}

func TestDecode_ChecksumBit(t *testing.T) {
	frame := mustParse(t, defaultFrame)
	for i := 0; i < checksumWidth; i++ {
		_, err := Decode(flip(frame, idxChecksum+i))
		var csErr *ChecksumError
		if !errors.As(err, &csErr) {
			t.Fatalf("bit %d: expected ChecksumError, got %v", i, err)
		}
		if csErr.Computed != 12 || csErr.Transmitted != 12^(1<<i) {
			t.Errorf("bit %d: got transmitted %d computed %d", i, csErr.Transmitted, csErr.Computed)
		}
	}
}

func TestDecode_ChecksumSensitivity(t *testing.T) {
	frame := mustParse(t, defaultFrame)
	_, err := Decode(flip(frame, idxOn))
	var csErr *ChecksumError
	if !errors.As(err, &csErr) {
		t.Fatalf("expected ChecksumError, got %v", err)
	}
	if csErr.Nibbles() != 0xC4 {
		t.Errorf("Nibbles() = 0x%02X, want 0xC4", csErr.Nibbles())
	}
}

func TestDecode_WiFiOutsideChecksum(t *testing.T) {
	got, err := Decode(flip(mustParse(t, defaultFrame), idxWiFi))
	if err != nil {
		t.Fatalf("wifi is not covered by the structured checksum: %v", err)
	}
	if !got.WiFi {
		t.Error("expected WiFi to be set")
	}
}

func TestDecode_MissingEndOnShortFrame(t *testing.T) {
	frame := mustParse(t, defaultFrame)
	if _, err := Decode(frame[:69]); !errors.Is(err, ErrEOF) {
		t.Errorf("expected ErrEOF, got %v", err)
	}
}
