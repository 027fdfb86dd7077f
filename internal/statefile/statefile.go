// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package statefile converts between human-written state documents (YAML or
// JSON) and aircode.Controller values.
package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

// Format is a document serialization
type Format string

// Supported formats
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for formats other than yaml and json
var ErrUnknownFormat = errors.New("statefile: unknown format")

// ParseFormat accepts "yaml", "yml" and "json"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatForPath picks the format from a file extension, defaulting to YAML
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Document is the editable form of a remote state. Empty strings and a
// zero temperature select the remote's defaults.
type Document struct {
	Power       bool   `yaml:"power" json:"power" mapstructure:"power"`
	Mode        string `yaml:"mode,omitempty" json:"mode,omitempty" mapstructure:"mode"`
	Temperature int    `yaml:"temperature,omitempty" json:"temperature,omitempty" mapstructure:"temperature"`
	Fan         string `yaml:"fan,omitempty" json:"fan,omitempty" mapstructure:"fan"`
	Swing       bool   `yaml:"swing,omitempty" json:"swing,omitempty" mapstructure:"swing"`
	Sleep       bool   `yaml:"sleep,omitempty" json:"sleep,omitempty" mapstructure:"sleep"`
	Timer       *Timer `yaml:"timer,omitempty" json:"timer,omitempty" mapstructure:"timer"`
	Turbo       bool   `yaml:"turbo,omitempty" json:"turbo,omitempty" mapstructure:"turbo"`
	Light       bool   `yaml:"light,omitempty" json:"light,omitempty" mapstructure:"light"`
	Health      bool   `yaml:"health,omitempty" json:"health,omitempty" mapstructure:"health"`
	Dry         bool   `yaml:"dry,omitempty" json:"dry,omitempty" mapstructure:"dry"`
	Ventilate   bool   `yaml:"ventilate,omitempty" json:"ventilate,omitempty" mapstructure:"ventilate"`
	VSwing      string `yaml:"vswing,omitempty" json:"vswing,omitempty" mapstructure:"vswing"`
	HSwing      string `yaml:"hswing,omitempty" json:"hswing,omitempty" mapstructure:"hswing"`
	Display     string `yaml:"display,omitempty" json:"display,omitempty" mapstructure:"display"`
	IFeel       bool   `yaml:"ifeel,omitempty" json:"ifeel,omitempty" mapstructure:"ifeel"`
	WiFi        bool   `yaml:"wifi,omitempty" json:"wifi,omitempty" mapstructure:"wifi"`
	Econo       bool   `yaml:"econo,omitempty" json:"econo,omitempty" mapstructure:"econo"`
}

// Timer is the timer in hours, in half hour steps
type Timer struct {
	Enabled bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Hours   float64 `yaml:"hours" json:"hours" mapstructure:"hours"`
}

var modeAliases = map[string]aircode.Mode{
	"cool":     aircode.ModeCold,
	"heat":     aircode.ModeHot,
	"fan":      aircode.ModeWind,
	"fan_only": aircode.ModeWind,
}

var fanAliases = map[string]aircode.Fan{
	"low":    aircode.FanLevel1,
	"medium": aircode.FanLevel2,
	"high":   aircode.FanLevel3,
}

// ParseMode accepts aircode mode names and the aliases cool, heat, fan
// and fan_only
func ParseMode(s string) (aircode.Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := modeAliases[s]; ok {
		return m, nil
	}
	return aircode.ParseMode(s)
}

// ParseFan accepts aircode fan names and the aliases low, medium and high
func ParseFan(s string) (aircode.Fan, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if f, ok := fanAliases[s]; ok {
		return f, nil
	}
	return aircode.ParseFan(s)
}

// FromController builds the document for c
func FromController(c aircode.Controller) Document {
	d := Document{
		Power:       c.On,
		Mode:        c.Mode.String(),
		Temperature: c.Temperature.Celsius(),
		Fan:         c.Fan.String(),
		Swing:       c.Swing,
		Sleep:       c.Sleep,
		Turbo:       c.Strong,
		Light:       c.Light,
		Health:      c.Anion,
		Dry:         c.Dry,
		Ventilate:   c.Ventilate,
		VSwing:      c.VSwing.String(),
		HSwing:      c.HSwing.String(),
		Display:     c.TemperatureDisplay.String(),
		IFeel:       c.IFeel,
		WiFi:        c.WiFi,
		Econo:       c.Econo,
	}
	if c.Timer != (aircode.TimerSetting{}) {
		d.Timer = &Timer{Enabled: c.Timer.Enabled, Hours: float64(c.Timer.HalfHours) / 2}
	}
	return d
}

// Controller converts the document, rejecting unknown names and
// out-of-range values
func (d Document) Controller() (aircode.Controller, error) {
	c := aircode.Controller{
		On:        d.Power,
		Swing:     d.Swing,
		Sleep:     d.Sleep,
		Strong:    d.Turbo,
		Light:     d.Light,
		Anion:     d.Health,
		Dry:       d.Dry,
		Ventilate: d.Ventilate,
		IFeel:     d.IFeel,
		WiFi:      d.WiFi,
		Econo:     d.Econo,
	}

	var err error
	if d.Mode != "" {
		if c.Mode, err = ParseMode(d.Mode); err != nil {
			return aircode.Controller{}, err
		}
	}
	if d.Fan != "" {
		if c.Fan, err = ParseFan(d.Fan); err != nil {
			return aircode.Controller{}, err
		}
	}
	if d.Temperature != 0 {
		t, ok := aircode.NewTemperature(d.Temperature)
		if !ok {
			return aircode.Controller{}, fmt.Errorf("%w: %d°C (valid %d-%d)",
				aircode.ErrInvalidTemperature, d.Temperature, aircode.TemperatureMin, aircode.TemperatureMax)
		}
		c.Temperature = t
	}
	if d.Timer != nil {
		if c.Timer, err = d.Timer.setting(); err != nil {
			return aircode.Controller{}, err
		}
	}
	if d.VSwing != "" {
		if c.VSwing, err = aircode.ParseSwingMode(d.VSwing); err != nil {
			return aircode.Controller{}, err
		}
	}
	if d.HSwing != "" {
		if c.HSwing, err = aircode.ParseSwingMode(d.HSwing); err != nil {
			return aircode.Controller{}, err
		}
	}
	if d.Display != "" {
		if c.TemperatureDisplay, err = aircode.ParseTemperatureDisplay(d.Display); err != nil {
			return aircode.Controller{}, err
		}
	}
	return c, nil
}

func (t Timer) setting() (aircode.TimerSetting, error) {
	halves := t.Hours * 2
	if halves != math.Trunc(halves) || halves < 0 || halves > aircode.MaxTimerHalfHours {
		return aircode.TimerSetting{}, fmt.Errorf("%w: %gh (half hour steps up to %dh)",
			aircode.ErrInvalidTimerSetting, t.Hours, aircode.MaxTimerHalfHours/2)
	}
	return aircode.TimerSetting{Enabled: t.Enabled, HalfHours: uint8(halves)}, nil
}

// Marshal renders c as a document in the given format
func Marshal(c aircode.Controller, format Format) ([]byte, error) {
	d := FromController(c)
	switch format {
	case FormatJSON:
		return json.MarshalIndent(d, "", "  ")
	case FormatYAML:
		return yaml.Marshal(d)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Unmarshal parses a document and converts it
func Unmarshal(data []byte, format Format) (aircode.Controller, error) {
	return Merge(aircode.Controller{}, data, format)
}

// Merge applies a partial document on top of base. Fields absent from data
// keep their value from base.
func Merge(base aircode.Controller, data []byte, format Format) (aircode.Controller, error) {
	d := FromController(base)
	// Decode into a fresh timer so a partial timer does not alias base
	if d.Timer != nil {
		t := *d.Timer
		d.Timer = &t
	}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &d)
	case FormatYAML:
		err = yaml.Unmarshal(data, &d)
	default:
		return aircode.Controller{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return aircode.Controller{}, fmt.Errorf("failed to parse %s state: %w", format, err)
	}
	return d.Controller()
}

// Load reads a state document from path
func Load(path string) (aircode.Controller, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return aircode.Controller{}, fmt.Errorf("failed to read state file: %w", err)
	}
	c, err := Unmarshal(data, FormatForPath(path))
	if err != nil {
		return aircode.Controller{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes c to path in the format implied by its extension
func Save(path string, c aircode.Controller) error {
	data, err := Marshal(c, FormatForPath(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}
