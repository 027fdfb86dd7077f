// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package irlink

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

// Statistics tracks link packet statistics, captured frame decode results
// and error rates. It is not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Link counters
	TotalPackets     uint64
	ValidPackets     uint64
	CRCErrors        uint64
	DecodeErrors     uint64
	MalformedPackets uint64
	MissingCodes     uint64
	LengthMismatches uint64
	InvalidSymbols   uint64
	InvalidRepeats   uint64
	AnomalousValues  uint64

	// Frame counters
	Frames        uint64
	FramesDecoded uint64
	FrameErrors   map[string]uint64 // by aircode.ErrorKind

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		FrameErrors:    make(map[string]uint64),
	}
}

// Update updates statistics based on a packet and its errors
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRC) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidPackets++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyMissingCodes:
			s.MissingCodes++
			s.MalformedPackets++
		case AnomalyLengthMismatch:
			s.LengthMismatches++
			s.MalformedPackets++
		case AnomalyInvalidSymbol:
			s.InvalidSymbols++
			s.MalformedPackets++
		case AnomalyInvalidRepeat:
			s.InvalidRepeats++
			s.AnomalousValues++
		case AnomalyDecodeError:
			s.DecodeErrors++
		default:
			s.AnomalousValues++
		}
	}
}

// RecordFrame records the result of decoding a captured frame
func (s *Statistics) RecordFrame(err error) {
	s.Frames++
	s.LastUpdateTime = time.Now()
	if err == nil {
		s.FramesDecoded++
		return
	}
	if s.FrameErrors == nil {
		s.FrameErrors = make(map[string]uint64)
	}
	s.FrameErrors[aircode.ErrorKind(err)]++
}

// FrameErrorCount returns the total number of frames that failed to decode
func (s *Statistics) FrameErrorCount() uint64 {
	var n uint64
	for _, v := range s.FrameErrors {
		n += v
	}
	return n
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.CRCErrors + s.DecodeErrors + s.MalformedPackets + s.AnomalousValues + s.FrameErrorCount()
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n, total uint64) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets, s.TotalPackets))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors, s.TotalPackets))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors, s.TotalPackets))
	}
	if s.MalformedPackets > 0 {
		result += fmt.Sprintf("Malformed Pkts:  %8d (%.1f%%)\n", s.MalformedPackets, percent(s.MalformedPackets, s.TotalPackets))
		if s.MissingCodes > 0 {
			result += fmt.Sprintf("  Missing Codes:    %5d\n", s.MissingCodes)
		}
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.InvalidSymbols > 0 {
			result += fmt.Sprintf("  Invalid Symbols:  %5d\n", s.InvalidSymbols)
		}
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues, s.TotalPackets))
		if s.InvalidRepeats > 0 {
			result += fmt.Sprintf("  Invalid Repeat:   %5d\n", s.InvalidRepeats)
		}
	}

	if s.Frames > 0 {
		result += fmt.Sprintf("Frames:          %8d\n", s.Frames)
		result += fmt.Sprintf("Frames Decoded:  %8d (%.1f%%)\n", s.FramesDecoded, percent(s.FramesDecoded, s.Frames))
		kinds := make([]string, 0, len(s.FrameErrors))
		for kind := range s.FrameErrors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			result += fmt.Sprintf("  %-16s %5d\n", kind+":", s.FrameErrors[kind])
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
