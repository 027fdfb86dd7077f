// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomController builds an in-range structured state
func randomController(rng *rand.Rand) Controller {
	flag := func() bool { return rng.Intn(2) == 1 }
	return Controller{
		Mode:               Mode(rng.Intn(5)),
		On:                 flag(),
		Fan:                Fan(rng.Intn(4)),
		Swing:              flag(),
		Sleep:              flag(),
		Temperature:        MustTemperature(TemperatureMin + rng.Intn(TemperatureMax-TemperatureMin+1)),
		Timer:              TimerSetting{Enabled: flag(), HalfHours: uint8(rng.Intn(MaxTimerHalfHours + 1))},
		Strong:             flag(),
		Light:              flag(),
		Anion:              flag(),
		Dry:                flag(),
		Ventilate:          flag(),
		VSwing:             SwingMode(rng.Intn(16)),
		HSwing:             SwingMode(rng.Intn(16)),
		TemperatureDisplay: TemperatureDisplay(rng.Intn(4)),
		IFeel:              flag(),
		WiFi:               flag(),
		Econo:              flag(),
	}
}

// ============================================================
// Round Trip Fuzz Tests
// ============================================================

func TestFuzzController_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		c := randomController(rng)
		got, err := Decode(c.Encode())
		if err != nil {
			t.Fatalf("round %d: Decode failed for %+v: %v", i, c, err)
		}
		if got != c {
			t.Fatalf("round %d: round trip = %+v, want %+v", i, got, c)
		}
	}
}

func TestFuzzPacked_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		c := randomController(rng)
		p := PackController(c)
		got, err := DecodePacked(p.Encode())
		if err != nil {
			t.Fatalf("round %d: DecodePacked failed for %+v: %v", i, c, err)
		}
		if got.Bytes() != p.Bytes() {
			t.Fatalf("round %d: bytes % X, want % X", i, got.Bytes(), p.Bytes())
		}
		if got.Settings() != c {
			t.Fatalf("round %d: settings = %+v, want %+v", i, got.Settings(), c)
		}
	}
}

// ============================================================
// Corruption Fuzz Tests
// ============================================================

// TestFuzzDecode_RandomCodes feeds random code sequences to both decoders
// and verifies they never panic and always classify the failure
func TestFuzzDecode_RandomCodes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		codes := make([]Code, rng.Intn(FrameLength+5))
		for j := range codes {
			codes[j] = Code(rng.Intn(6))
		}
		for _, v := range Variants() {
			_, err := v.Decode(codes)
			if err != nil && ErrorKind(err) == "other" {
				t.Fatalf("round %d: %s returned unclassified error %v", i, v.Name(), err)
			}
		}
	}
}

// TestFuzzDecode_ChecksumFlip flips a checksum code of a valid frame and
// verifies the mismatch is always reported
func TestFuzzDecode_ChecksumFlip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		c := randomController(rng)
		frame := flip(c.Encode(), idxChecksum+rng.Intn(checksumWidth))
		if _, err := Decode(frame); !errors.Is(err, ErrChecksum) {
			t.Fatalf("round %d: expected ErrChecksum, got %v", i, err)
		}
	}
}

// TestFuzzDecode_Truncated verifies every prefix of a valid frame is ErrEOF
func TestFuzzDecode_Truncated(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		c := randomController(rng)
		n := rng.Intn(FrameLength)
		if _, err := Decode(c.Encode()[:n]); !errors.Is(err, ErrEOF) {
			t.Fatalf("round %d: prefix %d: expected ErrEOF, got %v", i, n, err)
		}
		p := PackController(c)
		if _, err := DecodePacked(p.Encode()[:n]); !errors.Is(err, ErrEOF) {
			t.Fatalf("round %d: packed prefix %d: expected ErrEOF, got %v", i, n, err)
		}
	}
}
