// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package aircode implements the infrared command frame of a split
// air-conditioner remote control.
//
// A frame is a fixed sequence of 70 codes: three framing markers and 67
// pulse-duration codes carrying the packed controller state, vendor magic
// sequences and a 4-bit checksum. Two protocol revisions share the frame
// geometry: the structured revision (Controller) and the packed-byte
// revision (Packed). Both convert between a state value and a frame; the
// package performs no I/O and keeps no state between calls.
package aircode

// Frame geometry
const (
	FrameLength    = 70
	SegmentALength = 35
	SegmentBLength = 32

	startIndex    = 0
	continueIndex = 1 + SegmentALength
	endIndex      = FrameLength - 1
)

// Attribute widths in codes
const (
	modeWidth        = 3
	fanWidth         = 2
	temperatureWidth = 4
	timerWidth       = 8
	swingModeWidth   = 4
	displayWidth     = 2
	checksumWidth    = 4

	reservedWidth = 11
)

// Temperature range in degrees Celsius
const (
	TemperatureMin = 16
	TemperatureMax = 30
)

// MaxTimerHalfHours is the longest timer a remote can set (24 hours).
const MaxTimerHalfHours = 48

// Checksum engine configuration
const (
	checksumSeed      = 10
	checksumLowBytes  = 4
	checksumHighBytes = 3
)

// Fixed bits of the packed-byte layout. They carry magic-A (byte 3) and
// magic-D (byte 5) and are never settable.
const (
	packedFixedByte3 = 0b0101_0000
	packedFixedByte5 = 0b0010_0000
)

// Magic sequences. magicA and magicAAlt are the two known fingerprints
// accepted in segment A.
var (
	magicA    = [7]Code{CodeShort, CodeShort, CodeShort, CodeLong, CodeShort, CodeLong, CodeShort}
	magicAAlt = [7]Code{CodeShort, CodeShort, CodeShort, CodeLong, CodeLong, CodeLong, CodeShort}
	magicC    = [3]Code{CodeShort, CodeLong, CodeShort}
	magicD    = [3]Code{CodeShort, CodeShort, CodeLong}
)

// Magic block identifiers reported by MagicError
const (
	MagicBlockA = 1
	MagicBlockC = 2
	MagicBlockD = 3
)
