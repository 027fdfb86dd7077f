// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"iter"
	"slices"
)

// Packed byte positions and masks
const (
	packedLength = 8

	maskMode  = 0b0000_0111
	bitPower  = 3
	shiftFan  = 4
	maskFan   = 0b0011_0000
	bitSwing  = 6
	bitSleep  = 7
	maskTemp  = 0x0F
	bitTurbo  = 4
	bitLight  = 5
	bitHealth = 6
	bitDry    = 7
	bitVent   = 0
	maskDisp  = 0b0000_0011
	bitIFeel  = 2
	bitWiFi   = 6
	bitEcono  = 2
)

// Packed is the remote's state in the packed-byte revision: eight bytes
// with fixed bit positions per attribute. The checksum nibble in the high
// half of the last byte is refreshed by every setter, so the stored bytes
// always carry their own checksum.
//
// Use NewPacked for a default state; the zero value lacks the fixed bits
// and does not decode.
type Packed struct {
	b [packedLength]byte
}

// NewPacked returns the default state with the fixed bits preset.
func NewPacked() Packed {
	var p Packed
	p.b[3] = packedFixedByte3
	p.b[5] = packedFixedByte5
	p.refresh()
	return p
}

// PackedFromBytes wraps raw state bytes without validation.
func PackedFromBytes(b [8]byte) Packed {
	return Packed{b: b}
}

// Bytes returns a copy of the stored bytes.
func (p *Packed) Bytes() [8]byte {
	return p.b
}

func (p *Packed) refresh() {
	p.b[7] = p.b[7]&0x0F | CalculateChecksum(p.b[:7])<<4
}

func (p *Packed) flag(i, bit int) bool {
	return p.b[i]>>bit&1 != 0
}

func (p *Packed) setFlag(i, bit int, v bool) {
	p.b[i] = p.b[i]&^(1<<bit) | boolBit(v)<<bit
	p.refresh()
}

// Mode returns the operating mode.
func (p *Packed) Mode() Mode { return Mode(p.b[0] & maskMode) }

// SetMode sets the operating mode.
func (p *Packed) SetMode(m Mode) {
	p.b[0] = p.b[0]&^maskMode | uint8(m)&maskMode
	p.refresh()
}

// Power reports whether the unit is switched on.
func (p *Packed) Power() bool { return p.flag(0, bitPower) }

// SetPower switches the unit on or off.
func (p *Packed) SetPower(v bool) { p.setFlag(0, bitPower, v) }

// Fan returns the fan speed.
func (p *Packed) Fan() Fan { return Fan(p.b[0] & maskFan >> shiftFan) }

// SetFan sets the fan speed.
func (p *Packed) SetFan(f Fan) {
	p.b[0] = p.b[0]&^maskFan | uint8(f)<<shiftFan&maskFan
	p.refresh()
}

func (p *Packed) Swing() bool     { return p.flag(0, bitSwing) }
func (p *Packed) SetSwing(v bool) { p.setFlag(0, bitSwing, v) }
func (p *Packed) Sleep() bool     { return p.flag(0, bitSleep) }
func (p *Packed) SetSleep(v bool) { p.setFlag(0, bitSleep, v) }

// Temperature returns the set point. A stored offset above 14 is clamped to
// TemperatureMax; decoding rejects such bytes before they reach a Packed.
func (p *Packed) Temperature() Temperature {
	t, err := temperatureFromOffset(p.b[1] & maskTemp)
	if err != nil {
		return Temperature{offset: TemperatureMax - TemperatureMin}
	}
	return t
}

// SetTemperature sets the set point.
func (p *Packed) SetTemperature(t Temperature) {
	p.b[1] = p.b[1]&^maskTemp | t.offset&maskTemp
	p.refresh()
}

// timerByte reassembles the timer from the high nibble of byte 1 and the
// low nibble of byte 2.
func (p *Packed) timerByte() uint8 {
	return p.b[1]>>4 | p.b[2]&0x0F<<4
}

// Timer returns the timer setting.
func (p *Packed) Timer() TimerSetting {
	v := p.timerByte()
	half := v & 1
	tens := v >> 1 & 0b11
	units := v >> 4
	return TimerSetting{
		Enabled:   v>>3&1 != 0,
		HalfHours: (tens*10+units)*2 + half,
	}
}

// SetTimer sets the timer.
func (p *Packed) SetTimer(t TimerSetting) {
	v := t.Byte()
	p.b[1] = p.b[1]&0x0F | v<<4
	p.b[2] = p.b[2]&0xF0 | v>>4
	p.refresh()
}

func (p *Packed) Turbo() bool           { return p.flag(2, bitTurbo) }
func (p *Packed) SetTurbo(v bool)       { p.setFlag(2, bitTurbo, v) }
func (p *Packed) Light() bool           { return p.flag(2, bitLight) }
func (p *Packed) SetLight(v bool)       { p.setFlag(2, bitLight, v) }
func (p *Packed) Health() bool          { return p.flag(2, bitHealth) }
func (p *Packed) SetHealth(v bool)      { p.setFlag(2, bitHealth, v) }
func (p *Packed) Dry() bool             { return p.flag(2, bitDry) }
func (p *Packed) SetDry(v bool)         { p.setFlag(2, bitDry, v) }
func (p *Packed) Ventilate() bool       { return p.flag(3, bitVent) }
func (p *Packed) SetVentilate(v bool)   { p.setFlag(3, bitVent, v) }
func (p *Packed) IFeel() bool           { return p.flag(5, bitIFeel) }
func (p *Packed) SetIFeel(v bool)       { p.setFlag(5, bitIFeel, v) }
func (p *Packed) WiFi() bool            { return p.flag(5, bitWiFi) }
func (p *Packed) SetWiFi(v bool)        { p.setFlag(5, bitWiFi, v) }
func (p *Packed) Econo() bool           { return p.flag(7, bitEcono) }
func (p *Packed) SetEcono(v bool)       { p.setFlag(7, bitEcono, v) }
func (p *Packed) VSwing() SwingMode     { return SwingMode(p.b[4] & 0x0F) }
func (p *Packed) HSwing() SwingMode     { return SwingMode(p.b[4] >> 4) }
func (p *Packed) SetVSwing(s SwingMode) { p.setNibble(4, 0, uint8(s)) }
func (p *Packed) SetHSwing(s SwingMode) { p.setNibble(4, 4, uint8(s)) }

func (p *Packed) setNibble(i, shift int, v uint8) {
	p.b[i] = p.b[i]&^(0x0F<<shift) | v&0x0F<<shift
	p.refresh()
}

// TemperatureDisplay returns which temperature the indoor unit shows.
func (p *Packed) TemperatureDisplay() TemperatureDisplay {
	return TemperatureDisplay(p.b[5] & maskDisp)
}

// SetTemperatureDisplay selects which temperature the indoor unit shows.
func (p *Packed) SetTemperatureDisplay(d TemperatureDisplay) {
	p.b[5] = p.b[5]&^maskDisp | uint8(d)&maskDisp
	p.refresh()
}

// Checksum returns the stored checksum nibble.
func (p *Packed) Checksum() uint8 {
	return p.b[7] >> 4
}

// Codes yields the 70-code frame for p.
func (p *Packed) Codes() iter.Seq[Code] {
	return func(yield func(Code) bool) {
		e := &emitter{yield: yield}

		e.code(CodeStart)
		for _, v := range p.b[:4] {
			e.bits(v, 8)
		}
		e.codes(magicC[:])

		e.code(CodeContinue)
		for _, v := range p.b[4:7] {
			e.bits(v, 8)
		}
		e.bits(p.b[7], 4)
		e.bits(CalculateChecksum(p.b[:7]), checksumWidth)

		e.code(CodeEnd)
	}
}

// Encode returns the 70-code frame for p.
func (p *Packed) Encode() []Code {
	return slices.Collect(p.Codes())
}

// Settings converts p to the structured state.
func (p *Packed) Settings() Controller {
	return Controller{
		Mode:               p.Mode(),
		On:                 p.Power(),
		Fan:                p.Fan(),
		Swing:              p.Swing(),
		Sleep:              p.Sleep(),
		Temperature:        p.Temperature(),
		Timer:              p.Timer(),
		Strong:             p.Turbo(),
		Light:              p.Light(),
		Anion:              p.Health(),
		Dry:                p.Dry(),
		Ventilate:          p.Ventilate(),
		VSwing:             p.VSwing(),
		HSwing:             p.HSwing(),
		TemperatureDisplay: p.TemperatureDisplay(),
		IFeel:              p.IFeel(),
		WiFi:               p.WiFi(),
		Econo:              p.Econo(),
	}
}

// PackController converts a structured state to the packed revision.
func PackController(c Controller) Packed {
	p := NewPacked()
	p.SetMode(c.Mode)
	p.SetPower(c.On)
	p.SetFan(c.Fan)
	p.SetSwing(c.Swing)
	p.SetSleep(c.Sleep)
	p.SetTemperature(c.Temperature)
	p.SetTimer(c.Timer)
	p.SetTurbo(c.Strong)
	p.SetLight(c.Light)
	p.SetHealth(c.Anion)
	p.SetDry(c.Dry)
	p.SetVentilate(c.Ventilate)
	p.SetVSwing(c.VSwing)
	p.SetHSwing(c.HSwing)
	p.SetTemperatureDisplay(c.TemperatureDisplay)
	p.SetIFeel(c.IFeel)
	p.SetWiFi(c.WiFi)
	p.SetEcono(c.Econo)
	return p
}

// DecodePacked parses a packed-revision frame. Marker and length checks
// match Decode. Mode, temperature and timer are range checked once the
// first four bytes are in; a checksum mismatch is the plain ErrChecksum.
func DecodePacked(codes []Code) (Packed, error) {
	if len(codes) > FrameLength {
		return Packed{}, ErrFrameLength
	}
	if err := checkMarkers(codes); err != nil {
		return Packed{}, err
	}

	r := newCodeReader(codes)
	var p Packed

	if err := r.expect(CodeStart); err != nil {
		return Packed{}, err
	}
	for i := 0; i < 4; i++ {
		v, err := r.bits(8)
		if err != nil {
			return Packed{}, err
		}
		p.b[i] = v
	}
	if err := p.checkRanges(); err != nil {
		return Packed{}, err
	}
	if err := checkMagicC(r); err != nil {
		return Packed{}, err
	}

	if err := r.expect(CodeContinue); err != nil {
		return Packed{}, err
	}
	for i := 4; i < 7; i++ {
		v, err := r.bits(8)
		if err != nil {
			return Packed{}, err
		}
		p.b[i] = v
	}
	low, err := r.bits(4)
	if err != nil {
		return Packed{}, err
	}
	transmitted, err := r.bits(checksumWidth)
	if err != nil {
		return Packed{}, err
	}
	p.b[7] = low | transmitted<<4
	if transmitted != CalculateChecksum(p.b[:7]) {
		return Packed{}, ErrChecksum
	}

	if err := r.expect(CodeEnd); err != nil {
		return Packed{}, err
	}

	return p, nil
}

func (p *Packed) checkRanges() error {
	if !Mode(p.b[0] & maskMode).Valid() {
		return ErrInvalidMode
	}
	if _, err := temperatureFromOffset(p.b[1] & maskTemp); err != nil {
		return err
	}
	if _, err := TimerSettingFromByte(p.timerByte()); err != nil {
		return err
	}
	return nil
}
