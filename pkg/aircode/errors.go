// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"errors"
	"fmt"
)

// Decode errors. Encoding never fails.
var (
	ErrEOF                 = errors.New("aircode: frame ended early")
	ErrFrameLength         = errors.New("aircode: frame longer than 70 codes")
	ErrInvalidMarker       = errors.New("aircode: invalid frame marker")
	ErrUnexpectedMarker    = errors.New("aircode: marker in data position")
	ErrInvalidMagic        = errors.New("aircode: invalid magic sequence")
	ErrInvalidMode         = errors.New("aircode: invalid mode")
	ErrInvalidFan          = errors.New("aircode: invalid fan speed")
	ErrInvalidTemperature  = errors.New("aircode: invalid temperature")
	ErrInvalidTimerSetting = errors.New("aircode: invalid timer setting")
	ErrChecksum            = errors.New("aircode: checksum mismatch")
)

// MagicError reports which magic block of a frame did not match.
type MagicError struct {
	Block uint8
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("aircode: invalid magic sequence in block %d", e.Block)
}

// Is makes errors.Is(err, ErrInvalidMagic) true for every block.
func (e *MagicError) Is(target error) bool {
	return target == ErrInvalidMagic
}

// ChecksumError carries the transmitted and recomputed checksum nibbles.
type ChecksumError struct {
	Transmitted uint8
	Computed    uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("aircode: checksum mismatch: transmitted 0x%X, computed 0x%X", e.Transmitted, e.Computed)
}

// Is makes errors.Is(err, ErrChecksum) true.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// Nibbles packs both checksums into one byte, transmitted in the high nibble.
func (e *ChecksumError) Nibbles() uint8 {
	return e.Transmitted<<4 | e.Computed
}

// ErrorKind returns a short stable name for a decode error, suitable for
// statistics and log fields. Unknown errors map to "other".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrEOF):
		return "eof"
	case errors.Is(err, ErrFrameLength):
		return "length"
	case errors.Is(err, ErrInvalidMarker), errors.Is(err, ErrUnexpectedMarker):
		return "marker"
	case errors.Is(err, ErrInvalidMagic):
		return "magic"
	case errors.Is(err, ErrInvalidMode), errors.Is(err, ErrInvalidFan),
		errors.Is(err, ErrInvalidTemperature), errors.Is(err, ErrInvalidTimerSetting):
		return "range"
	case errors.Is(err, ErrChecksum):
		return "checksum"
	}
	return "other"
}
