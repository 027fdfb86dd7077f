// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"fmt"
	"time"
)

// Mode is the operating mode.
type Mode uint8

// Mode values
const (
	ModeAuto Mode = iota
	ModeCold
	ModeDry
	ModeWind
	ModeHot
)

var modeNames = []string{"auto", "cold", "dry", "wind", "hot"}

func (m Mode) encode(e *emitter) {
	e.bits(uint8(m), modeWidth)
}

func decodeMode(r *codeReader) (Mode, error) {
	v, err := r.bits(modeWidth)
	if err != nil {
		return 0, err
	}
	m := Mode(v)
	if !m.Valid() {
		return 0, ErrInvalidMode
	}
	return m, nil
}

// Valid reports whether m names a mode.
func (m Mode) Valid() bool {
	return int(m) < len(modeNames)
}

func (m Mode) String() string {
	if m.Valid() {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, ErrInvalidMode
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode parses a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Fan is the fan speed.
type Fan uint8

// Fan values
const (
	FanAuto Fan = iota
	FanLevel1
	FanLevel2
	FanLevel3
)

var fanNames = []string{"auto", "level1", "level2", "level3"}

func (f Fan) encode(e *emitter) {
	e.bits(uint8(f), fanWidth)
}

// decodeFan keeps the range check although every 2-bit value is a level.
func decodeFan(r *codeReader) (Fan, error) {
	v, err := r.bits(fanWidth)
	if err != nil {
		return 0, err
	}
	f := Fan(v)
	if !f.Valid() {
		return 0, ErrInvalidFan
	}
	return f, nil
}

// Valid reports whether f names a fan speed.
func (f Fan) Valid() bool {
	return int(f) < len(fanNames)
}

func (f Fan) String() string {
	if f.Valid() {
		return fanNames[f]
	}
	return fmt.Sprintf("fan(%d)", uint8(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Fan) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, ErrInvalidFan
	}
	return []byte(fanNames[f]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fan) UnmarshalText(text []byte) error {
	v, err := ParseFan(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFan parses a fan speed name as produced by Fan.String.
func ParseFan(s string) (Fan, error) {
	for i, name := range fanNames {
		if name == s {
			return Fan(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFan, s)
}

// Temperature is a set point between TemperatureMin and TemperatureMax.
// The zero value is TemperatureMin.
type Temperature struct {
	offset uint8
}

// NewTemperature returns the set point for degrees Celsius. ok is false
// when degrees is outside the range a remote can send.
func NewTemperature(degrees int) (t Temperature, ok bool) {
	if degrees < TemperatureMin || degrees > TemperatureMax {
		return Temperature{}, false
	}
	return Temperature{offset: uint8(degrees - TemperatureMin)}, true
}

// MustTemperature is NewTemperature for constants. It panics on
// out-of-range input.
func MustTemperature(degrees int) Temperature {
	t, ok := NewTemperature(degrees)
	if !ok {
		panic(fmt.Sprintf("aircode: temperature %d out of range", degrees))
	}
	return t
}

// Celsius returns the set point in degrees Celsius.
func (t Temperature) Celsius() int {
	return int(t.offset) + TemperatureMin
}

func (t Temperature) String() string {
	return fmt.Sprintf("%d°C", t.Celsius())
}

func (t Temperature) encode(e *emitter) {
	e.bits(t.offset, temperatureWidth)
}

func decodeTemperature(r *codeReader) (Temperature, error) {
	v, err := r.bits(temperatureWidth)
	if err != nil {
		return Temperature{}, err
	}
	return temperatureFromOffset(v)
}

func temperatureFromOffset(v uint8) (Temperature, error) {
	if v > TemperatureMax-TemperatureMin {
		return Temperature{}, ErrInvalidTemperature
	}
	return Temperature{offset: v}, nil
}

// TimerSetting is the on/off timer. HalfHours counts 30 minute steps.
type TimerSetting struct {
	Enabled   bool
	HalfHours uint8
}

// NewTimer returns an enabled timer for the given number of half hours.
// ok is false above MaxTimerHalfHours.
func NewTimer(halfHours int) (t TimerSetting, ok bool) {
	if halfHours < 0 || halfHours > MaxTimerHalfHours {
		return TimerSetting{}, false
	}
	return TimerSetting{Enabled: true, HalfHours: uint8(halfHours)}, true
}

// Duration returns the timer length.
func (t TimerSetting) Duration() time.Duration {
	return time.Duration(t.HalfHours) * 30 * time.Minute
}

func (t TimerSetting) String() string {
	if !t.Enabled {
		return "off"
	}
	return fmt.Sprintf("%d.%dh", t.HalfHours/2, 5*(t.HalfHours%2))
}

// Byte packs the timer: bit 0 half hour, bits 1-2 tens of hours,
// bit 3 enabled, bits 4-7 units of hours.
func (t TimerSetting) Byte() uint8 {
	hours := t.HalfHours / 2
	half := t.HalfHours % 2
	tens := hours / 10 & 0b11
	units := hours % 10
	return half | tens<<1 | boolBit(t.Enabled)<<3 | units<<4
}

// TimerSettingFromByte unpacks a timer byte. Tens above 2 or units above 9
// are ErrInvalidTimerSetting.
func TimerSettingFromByte(v uint8) (TimerSetting, error) {
	half := v & 1
	tens := v >> 1 & 0b11
	enabled := v>>3&1 != 0
	units := v >> 4
	if tens > 2 || units > 9 {
		return TimerSetting{}, ErrInvalidTimerSetting
	}
	return TimerSetting{
		Enabled:   enabled,
		HalfHours: (tens*10+units)*2 + half,
	}, nil
}

func (t TimerSetting) encode(e *emitter) {
	e.bits(t.Byte(), timerWidth)
}

func decodeTimer(r *codeReader) (TimerSetting, error) {
	v, err := r.bits(timerWidth)
	if err != nil {
		return TimerSetting{}, err
	}
	return TimerSettingFromByte(v)
}

// SwingMode is a louvre setting. Only Off and On are documented; the other
// fourteen patterns are kept as opaque values so they survive a round trip.
type SwingMode uint8

// SwingMode values
const (
	SwingOff SwingMode = iota
	SwingOn
	SwingUnknown2
	SwingUnknown3
	SwingUnknown4
	SwingUnknown5
	SwingUnknown6
	SwingUnknown7
	SwingUnknown8
	SwingUnknown9
	SwingUnknown10
	SwingUnknown11
	SwingUnknown12
	SwingUnknown13
	SwingUnknown14
	SwingUnknown15
)

func (s SwingMode) encode(e *emitter) {
	e.bits(uint8(s), swingModeWidth)
}

// decodeSwingMode cannot fail on data: all sixteen patterns are named.
func decodeSwingMode(r *codeReader) (SwingMode, error) {
	v, err := r.bits(swingModeWidth)
	if err != nil {
		return 0, err
	}
	return SwingMode(v & 0x0F), nil
}

func (s SwingMode) String() string {
	switch s {
	case SwingOff:
		return "off"
	case SwingOn:
		return "on"
	}
	return fmt.Sprintf("unknown%d", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s SwingMode) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SwingMode) UnmarshalText(text []byte) error {
	v, err := ParseSwingMode(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSwingMode parses "off", "on" or "unknownN" for N in 2..15.
func ParseSwingMode(str string) (SwingMode, error) {
	switch str {
	case "off":
		return SwingOff, nil
	case "on":
		return SwingOn, nil
	}
	var n int
	if _, err := fmt.Sscanf(str, "unknown%d", &n); err == nil && n >= 2 && n <= 15 {
		if fmt.Sprintf("unknown%d", n) == str {
			return SwingMode(n), nil
		}
	}
	return 0, fmt.Errorf("aircode: invalid swing mode %q", str)
}

// TemperatureDisplay selects which temperature the indoor unit shows.
type TemperatureDisplay uint8

// TemperatureDisplay values
const (
	DisplaySetting TemperatureDisplay = iota
	DisplayRoom
	DisplayIndoor
	DisplayOutdoor
)

var displayNames = []string{"setting", "room", "indoor", "outdoor"}

func (d TemperatureDisplay) encode(e *emitter) {
	e.bits(uint8(d), displayWidth)
}

func decodeTemperatureDisplay(r *codeReader) (TemperatureDisplay, error) {
	v, err := r.bits(displayWidth)
	if err != nil {
		return 0, err
	}
	return TemperatureDisplay(v & 0b11), nil
}

func (d TemperatureDisplay) String() string {
	if int(d) < len(displayNames) {
		return displayNames[d]
	}
	return fmt.Sprintf("display(%d)", uint8(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d TemperatureDisplay) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *TemperatureDisplay) UnmarshalText(text []byte) error {
	v, err := ParseTemperatureDisplay(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseTemperatureDisplay parses a display name as produced by String.
func ParseTemperatureDisplay(s string) (TemperatureDisplay, error) {
	for i, name := range displayNames {
		if name == s {
			return TemperatureDisplay(i), nil
		}
	}
	return 0, fmt.Errorf("aircode: invalid temperature display %q", s)
}
