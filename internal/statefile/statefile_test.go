// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statefile

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

var sampleController = aircode.Controller{
	Mode:               aircode.ModeCold,
	On:                 true,
	Fan:                aircode.FanLevel2,
	Temperature:        aircode.MustTemperature(24),
	Timer:              aircode.TimerSetting{Enabled: true, HalfHours: 3},
	VSwing:             aircode.SwingOn,
	TemperatureDisplay: aircode.DisplayRoom,
	IFeel:              true,
	WiFi:               true,
}

const sampleYAML = `
power: true
mode: cool
temperature: 24
fan: medium
timer:
  enabled: true
  hours: 1.5
vswing: on
display: room
ifeel: true
wifi: true
`

func TestUnmarshal_YAML(t *testing.T) {
	got, err := Unmarshal([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != sampleController {
		t.Errorf("got %+v\nwant %+v", got, sampleController)
	}
}

func TestUnmarshal_JSON(t *testing.T) {
	doc := `{"power": true, "mode": "cold", "temperature": 24, "fan": "level2",
		"timer": {"enabled": true, "hours": 1.5}, "vswing": "on",
		"display": "room", "ifeel": true, "wifi": true}`
	got, err := Unmarshal([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != sampleController {
		t.Errorf("got %+v", got)
	}
}

func TestUnmarshal_EmptyIsDefault(t *testing.T) {
	got, err := Unmarshal([]byte("{}"), FormatJSON)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != (aircode.Controller{}) {
		t.Errorf("empty document = %+v", got)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Marshal(sampleController, format)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			got, err := Unmarshal(data, format)
			if err != nil {
				t.Fatalf("Unmarshal failed: %v\n%s", err, data)
			}
			if got != sampleController {
				t.Errorf("round trip = %+v", got)
			}
		})
	}
}

func TestMarshal_UsesCanonicalNames(t *testing.T) {
	data, err := Marshal(sampleController, FormatYAML)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, want := range []string{"mode: cold", "fan: level2", "temperature: 24", "hours: 1.5"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("yaml missing %q:\n%s", want, data)
		}
	}
}

func TestMarshal_UnknownFormat(t *testing.T) {
	if _, err := Marshal(sampleController, "toml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestDocument_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr error
	}{
		{"unknown mode", Document{Mode: "turbo"}, aircode.ErrInvalidMode},
		{"unknown fan", Document{Fan: "max"}, aircode.ErrInvalidFan},
		{"too cold", Document{Temperature: 15}, aircode.ErrInvalidTemperature},
		{"too hot", Document{Temperature: 31}, aircode.ErrInvalidTemperature},
		{"timer not half hour", Document{Timer: &Timer{Enabled: true, Hours: 1.25}}, aircode.ErrInvalidTimerSetting},
		{"timer too long", Document{Timer: &Timer{Enabled: true, Hours: 24.5}}, aircode.ErrInvalidTimerSetting},
		{"timer negative", Document{Timer: &Timer{Hours: -1}}, aircode.ErrInvalidTimerSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.Controller()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDocument_InvalidSwingAndDisplay(t *testing.T) {
	if _, err := (Document{VSwing: "sideways"}).Controller(); err == nil {
		t.Error("expected error for unknown swing")
	}
	if _, err := (Document{Display: "ceiling"}).Controller(); err == nil {
		t.Error("expected error for unknown display")
	}
}

func TestParseMode_Aliases(t *testing.T) {
	tests := map[string]aircode.Mode{
		"cool":     aircode.ModeCold,
		"HEAT":     aircode.ModeHot,
		"fan_only": aircode.ModeWind,
		"fan":      aircode.ModeWind,
		" dry ":    aircode.ModeDry,
		"auto":     aircode.ModeAuto,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestParseFan_Aliases(t *testing.T) {
	tests := map[string]aircode.Fan{
		"low":    aircode.FanLevel1,
		"medium": aircode.FanLevel2,
		"High":   aircode.FanLevel3,
		"auto":   aircode.FanAuto,
	}
	for in, want := range tests {
		got, err := ParseFan(in)
		if err != nil || got != want {
			t.Errorf("ParseFan(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestMerge_Partial(t *testing.T) {
	got, err := Merge(sampleController, []byte(`{"mode": "heat", "temperature": 28}`), FormatJSON)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	want := sampleController
	want.Mode = aircode.ModeHot
	want.Temperature = aircode.MustTemperature(28)
	if got != want {
		t.Errorf("merged = %+v\nwant %+v", got, want)
	}
}

func TestMerge_PartialTimer(t *testing.T) {
	got, err := Merge(sampleController, []byte("timer:\n  enabled: false\n"), FormatYAML)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if got.Timer != (aircode.TimerSetting{HalfHours: 3}) {
		t.Errorf("timer = %+v", got.Timer)
	}
}

func TestMerge_BadInput(t *testing.T) {
	if _, err := Merge(sampleController, []byte("{"), FormatJSON); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"state.yaml", "state.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Save(path, sampleController); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got != sampleController {
				t.Errorf("loaded %+v", got)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"yaml": FormatYAML, "YML": FormatYAML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
	if FormatForPath("a/b.JSON") != FormatJSON || FormatForPath("preset") != FormatYAML {
		t.Error("FormatForPath picked the wrong format")
	}
}
