// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"fmt"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

// CodesToBytes converts codes to their on-link form, one byte per code
func CodesToBytes(codes []aircode.Code) []byte {
	out := make([]byte, len(codes))
	for i, c := range codes {
		out[i] = byte(c)
	}
	return out
}

// BytesToCodes converts on-link code bytes back to codes.
// Bytes outside the code alphabet are rejected.
func BytesToCodes(data []byte) ([]aircode.Code, error) {
	out := make([]aircode.Code, len(data))
	for i, b := range data {
		c := aircode.Code(b)
		if !c.Valid() {
			return nil, fmt.Errorf("invalid code byte 0x%02X at offset %d", b, i)
		}
		out[i] = c
	}
	return out, nil
}
