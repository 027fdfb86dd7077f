// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"strings"
	"testing"
)

func TestVariants_RoundTrip(t *testing.T) {
	for _, v := range Variants() {
		t.Run(v.Name(), func(t *testing.T) {
			for _, c := range []Controller{{}, sampleController} {
				frame := v.Encode(c)
				if len(frame) != FrameLength {
					t.Fatalf("frame length = %d", len(frame))
				}
				got, err := v.Decode(frame)
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				if got != c {
					t.Errorf("round trip = %+v\nwant %+v", got, c)
				}
			}
		})
	}
}

func TestLookupVariant(t *testing.T) {
	tests := []struct {
		name    string
		want    Variant
		wantErr bool
	}{
		{"structured", Structured, false},
		{"packed", PackedBytes, false},
		{"nec", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LookupVariant(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.name)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("LookupVariant(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

func TestState_Interface(t *testing.T) {
	p := PackController(sampleController)
	c := sampleController
	states := []State{&c, &p}
	for _, s := range states {
		if s.Settings() != sampleController {
			t.Errorf("%T Settings() = %+v", s, s.Settings())
		}
		n := 0
		for range s.Codes() {
			n++
		}
		if n != FrameLength {
			t.Errorf("%T yielded %d codes", s, n)
		}
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestParseCodes(t *testing.T) {
	codes, err := ParseCodes("S 01|1_0\tC\nE")
	if err != nil {
		t.Fatalf("ParseCodes failed: %v", err)
	}
	want := []Code{CodeStart, CodeShort, CodeLong, CodeLong, CodeShort, CodeContinue, CodeEnd}
	if FormatCodes(codes) != FormatCodes(want) {
		t.Errorf("ParseCodes = %s", FormatCodes(codes))
	}
	if FormatCodes(codes) != "S0110CE" {
		t.Errorf("FormatCodes = %s", FormatCodes(codes))
	}

	if _, err := ParseCodes("S01x"); err == nil {
		t.Error("expected error for invalid character")
	}
}

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(Structured, mustParse(t, sampleFrame))
	for _, want := range []string{"mode", "100", "= 1", "checksum", "1011", "= 13", "magic-a"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "truncated") {
		t.Errorf("full frame reported as truncated:\n%s", out)
	}
}

func TestFormatFrame_Packed(t *testing.T) {
	p := PackController(sampleController)
	out := FormatFrame(PackedBytes, p.Encode())
	if !strings.Contains(out, "byte1") || !strings.Contains(out, "= 152") {
		t.Errorf("packed dump missing byte1 value:\n%s", out)
	}
}

func TestFormatFrame_Truncated(t *testing.T) {
	out := FormatFrame(Structured, mustParse(t, sampleFrame)[:10])
	if !strings.Contains(out, "temperature  (truncated)") {
		t.Errorf("expected truncated temperature:\n%s", out)
	}
}

func TestFormatController(t *testing.T) {
	tests := []struct {
		name string
		c    Controller
		want string
	}{
		{
			name: "default",
			c:    Controller{},
			want: "off auto 16°C fan=auto timer=off vswing=off hswing=off display=setting",
		},
		{
			name: "sample",
			c:    sampleController,
			want: "on cold 24°C fan=level2 timer=1.5h [i-feel,wifi] vswing=on hswing=off display=room",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatController(tt.c); got != tt.want {
				t.Errorf("FormatController =\n %q\nwant\n %q", got, tt.want)
			}
		})
	}
}
