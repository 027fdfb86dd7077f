// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"iter"
	"slices"
)

// Controller is the remote's state in the structured revision: one field
// per attribute. The zero value is the default state (auto mode, off,
// 16°C, every toggle off).
type Controller struct {
	Mode        Mode
	On          bool
	Fan         Fan
	Swing       bool
	Sleep       bool
	Temperature Temperature
	Timer       TimerSetting
	Strong      bool // turbo
	Light       bool
	Anion       bool // health
	Dry         bool // power saving
	Ventilate   bool

	VSwing             SwingMode
	HSwing             SwingMode
	TemperatureDisplay TemperatureDisplay
	IFeel              bool
	WiFi               bool
	Econo              bool
}

// Codes yields the 70-code frame for c.
func (c *Controller) Codes() iter.Seq[Code] {
	return func(yield func(Code) bool) {
		e := &emitter{yield: yield}

		e.code(CodeStart)

		// Segment A
		c.Mode.encode(e)
		e.bit(c.On)
		c.Fan.encode(e)
		e.bit(c.Swing)
		e.bit(c.Sleep)
		c.Temperature.encode(e)
		c.Timer.encode(e)
		e.bit(c.Strong)
		e.bit(c.Light)
		e.bit(c.Anion)
		e.bit(c.Dry)
		e.bit(c.Ventilate)
		e.codes(magicA[:])
		e.codes(magicC[:])

		e.code(CodeContinue)

		// Segment B
		c.VSwing.encode(e)
		c.HSwing.encode(e)
		c.TemperatureDisplay.encode(e)
		e.bit(c.IFeel)
		e.codes(magicD[:])
		e.bit(c.WiFi)
		e.repeat(CodeShort, reservedWidth)
		e.bit(c.Econo)
		e.code(CodeShort)
		e.bits(c.Checksum(), checksumWidth)

		e.code(CodeEnd)
	}
}

// Encode returns the 70-code frame for c.
func (c *Controller) Encode() []Code {
	return slices.Collect(c.Codes())
}

// Checksum returns the checksum nibble the frame for c carries.
func (c *Controller) Checksum() uint8 {
	block := c.checksumBlock()
	return CalculateChecksum(block[:])
}

// checksumBlock is the byte view this revision sums. The timer byte is
// zero and wifi is not included.
func (c *Controller) checksumBlock() [7]byte {
	return [7]byte{
		uint8(c.Mode)&0b111 | boolBit(c.On)<<3,
		c.Temperature.offset,
		0x00,
		boolBit(c.Ventilate) | packedFixedByte3,
		uint8(c.VSwing)&0x0F | uint8(c.HSwing)<<4,
		uint8(c.TemperatureDisplay)&0b11 | boolBit(c.IFeel)<<2 | packedFixedByte5,
		0x00,
	}
}

// Settings returns a copy of c.
func (c *Controller) Settings() Controller {
	return *c
}

// Decode parses a structured-revision frame.
//
// A frame of at least 70 codes must carry Start, Continue and End at
// indices 0, 36 and 69 before any field is read. Fields are then consumed
// in order; a shorter frame fails with ErrEOF at the first field that runs
// out. The checksum is compared before the trailing End marker.
func Decode(codes []Code) (Controller, error) {
	if len(codes) > FrameLength {
		return Controller{}, ErrFrameLength
	}
	if err := checkMarkers(codes); err != nil {
		return Controller{}, err
	}

	r := newCodeReader(codes)
	var c Controller
	var err error

	if err = r.expect(CodeStart); err != nil {
		return Controller{}, err
	}

	if c.Mode, err = decodeMode(r); err != nil {
		return Controller{}, err
	}
	if c.On, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Fan, err = decodeFan(r); err != nil {
		return Controller{}, err
	}
	if c.Swing, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Sleep, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Temperature, err = decodeTemperature(r); err != nil {
		return Controller{}, err
	}
	if c.Timer, err = decodeTimer(r); err != nil {
		return Controller{}, err
	}
	if c.Strong, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Light, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Anion, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Dry, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if c.Ventilate, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if err = checkMagicA(r); err != nil {
		return Controller{}, err
	}
	if err = checkMagicC(r); err != nil {
		return Controller{}, err
	}

	if err = r.expect(CodeContinue); err != nil {
		return Controller{}, err
	}

	if c.VSwing, err = decodeSwingMode(r); err != nil {
		return Controller{}, err
	}
	if c.HSwing, err = decodeSwingMode(r); err != nil {
		return Controller{}, err
	}
	if c.TemperatureDisplay, err = decodeTemperatureDisplay(r); err != nil {
		return Controller{}, err
	}
	if c.IFeel, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if err = checkMagicD(r); err != nil {
		return Controller{}, err
	}
	if c.WiFi, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if err = r.skip(reservedWidth); err != nil {
		return Controller{}, err
	}
	if c.Econo, err = r.bit(); err != nil {
		return Controller{}, err
	}
	if err = r.skip(1); err != nil {
		return Controller{}, err
	}

	transmitted, err := r.bits(checksumWidth)
	if err != nil {
		return Controller{}, err
	}
	if computed := c.Checksum(); transmitted != computed {
		return Controller{}, &ChecksumError{Transmitted: transmitted, Computed: computed}
	}

	if err = r.expect(CodeEnd); err != nil {
		return Controller{}, err
	}

	return c, nil
}

// checkMarkers validates the three marker positions of a full-length frame.
// Shorter input is left to the sequential parse.
func checkMarkers(codes []Code) error {
	if len(codes) < FrameLength {
		return nil
	}
	if codes[startIndex] != CodeStart || codes[continueIndex] != CodeContinue || codes[endIndex] != CodeEnd {
		return ErrInvalidMarker
	}
	return nil
}

func checkMagicA(r *codeReader) error {
	var block [7]Code
	if err := r.block(block[:]); err != nil {
		return err
	}
	if block != magicA && block != magicAAlt {
		return &MagicError{Block: MagicBlockA}
	}
	return nil
}

func checkMagicC(r *codeReader) error {
	var block [3]Code
	if err := r.block(block[:]); err != nil {
		return err
	}
	if block != magicC {
		return &MagicError{Block: MagicBlockC}
	}
	return nil
}

func checkMagicD(r *codeReader) error {
	var block [3]Code
	if err := r.block(block[:]); err != nil {
		return err
	}
	if block != magicD {
		return &MagicError{Block: MagicBlockD}
	}
	return nil
}
