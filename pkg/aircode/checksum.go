// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

// CalculateChecksum computes the vendor checksum nibble over a packed state:
// the low nibbles of the first four bytes and the high nibbles of the next
// three, added to a seed of 10, modulo 16. Bytes beyond the seventh are
// ignored; missing bytes count as zero.
func CalculateChecksum(data []byte) uint8 {
	sum := uint8(checksumSeed)
	for i := 0; i < checksumLowBytes && i < len(data); i++ {
		sum += data[i] & 0x0F
	}
	for i := checksumLowBytes; i < checksumLowBytes+checksumHighBytes && i < len(data); i++ {
		sum += data[i] >> 4
	}
	return sum & 0x0F
}
