// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import "fmt"

// Code is one symbol of an infrared frame: a framing marker or a
// pulse-duration class carrying a single bit.
type Code uint8

// Code values. The numeric values are also the on-link byte values used by
// the IR bridge protocol.
const (
	CodeStart Code = iota
	CodeContinue
	CodeEnd
	CodeShort // 0
	CodeLong  // 1
)

// CodeFromBit returns the data code for a bit value.
func CodeFromBit(bit bool) Code {
	if bit {
		return CodeLong
	}
	return CodeShort
}

// Bit returns the bit carried by a data code.
// Markers carry no data and return ErrUnexpectedMarker.
func (c Code) Bit() (bool, error) {
	switch c {
	case CodeShort:
		return false, nil
	case CodeLong:
		return true, nil
	}
	return false, ErrUnexpectedMarker
}

// Byte returns the bit carried by a data code as 0 or 1.
func (c Code) Byte() (uint8, error) {
	switch c {
	case CodeShort:
		return 0, nil
	case CodeLong:
		return 1, nil
	}
	return 0, ErrUnexpectedMarker
}

// IsMarker reports whether c is Start, Continue or End.
func (c Code) IsMarker() bool {
	return c == CodeStart || c == CodeContinue || c == CodeEnd
}

// Valid reports whether c is one of the five defined codes.
func (c Code) Valid() bool {
	return c <= CodeLong
}

// Rune returns the single-character text form of c.
func (c Code) Rune() rune {
	switch c {
	case CodeStart:
		return 'S'
	case CodeContinue:
		return 'C'
	case CodeEnd:
		return 'E'
	case CodeShort:
		return '0'
	case CodeLong:
		return '1'
	}
	return '?'
}

func (c Code) String() string {
	switch c {
	case CodeStart:
		return "Start"
	case CodeContinue:
		return "Continue"
	case CodeEnd:
		return "End"
	case CodeShort:
		return "Short"
	case CodeLong:
		return "Long"
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}
