// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"fmt"
	"iter"
)

// State is the shape shared by both protocol revisions.
type State interface {
	Codes() iter.Seq[Code]
	Encode() []Code
	Checksum() uint8
	Settings() Controller
}

var (
	_ State = (*Controller)(nil)
	_ State = (*Packed)(nil)
)

// Variant names a protocol revision and converts between the structured
// state and that revision's frames. Frames of one variant must be decoded
// with the same variant.
type Variant interface {
	Name() string
	Encode(c Controller) []Code
	Decode(codes []Code) (Controller, error)
}

type structuredVariant struct{}

func (structuredVariant) Name() string { return "structured" }

func (structuredVariant) Encode(c Controller) []Code {
	return c.Encode()
}

func (structuredVariant) Decode(codes []Code) (Controller, error) {
	return Decode(codes)
}

type packedVariant struct{}

func (packedVariant) Name() string { return "packed" }

func (packedVariant) Encode(c Controller) []Code {
	p := PackController(c)
	return p.Encode()
}

func (packedVariant) Decode(codes []Code) (Controller, error) {
	p, err := DecodePacked(codes)
	if err != nil {
		return Controller{}, err
	}
	return p.Settings(), nil
}

// The two known protocol revisions
var (
	Structured  Variant = structuredVariant{}
	PackedBytes Variant = packedVariant{}
)

// Variants returns every known variant, structured first.
func Variants() []Variant {
	return []Variant{Structured, PackedBytes}
}

// LookupVariant returns the variant with the given name.
func LookupVariant(name string) (Variant, error) {
	for _, v := range Variants() {
		if v.Name() == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("aircode: unknown variant %q", name)
}
