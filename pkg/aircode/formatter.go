// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aircode

import (
	"fmt"
	"strings"
)

// FormatCodes renders codes as one character each: S, C, E for the
// markers and 0, 1 for Short and Long.
func FormatCodes(codes []Code) string {
	var sb strings.Builder
	sb.Grow(len(codes))
	for _, c := range codes {
		sb.WriteRune(c.Rune())
	}
	return sb.String()
}

// ParseCodes parses the text form produced by FormatCodes. Whitespace,
// '_' and '|' are ignored so frames can be grouped for readability.
func ParseCodes(s string) ([]Code, error) {
	codes := make([]Code, 0, FrameLength)
	for i, r := range s {
		switch r {
		case 'S':
			codes = append(codes, CodeStart)
		case 'C':
			codes = append(codes, CodeContinue)
		case 'E':
			codes = append(codes, CodeEnd)
		case '0':
			codes = append(codes, CodeShort)
		case '1':
			codes = append(codes, CodeLong)
		case ' ', '\t', '\n', '\r', '_', '|':
		default:
			return nil, fmt.Errorf("aircode: invalid code %q at offset %d", r, i)
		}
	}
	return codes, nil
}

// frameField describes one span of the structured frame.
type frameField struct {
	name  string
	width int
}

var structuredLayout = []frameField{
	{"start", 1},
	{"mode", modeWidth},
	{"on", 1},
	{"fan", fanWidth},
	{"swing", 1},
	{"sleep", 1},
	{"temperature", temperatureWidth},
	{"timer", timerWidth},
	{"strong", 1},
	{"light", 1},
	{"anion", 1},
	{"dry", 1},
	{"ventilate", 1},
	{"magic-a", len(magicA)},
	{"magic-c", len(magicC)},
	{"continue", 1},
	{"v-swing", swingModeWidth},
	{"h-swing", swingModeWidth},
	{"display", displayWidth},
	{"i-feel", 1},
	{"magic-d", len(magicD)},
	{"wifi", 1},
	{"reserved", reservedWidth},
	{"econo", 1},
	{"reserved", 1},
	{"checksum", checksumWidth},
	{"end", 1},
}

var packedLayout = []frameField{
	{"start", 1},
	{"byte0", 8},
	{"byte1", 8},
	{"byte2", 8},
	{"byte3", 8},
	{"magic-c", len(magicC)},
	{"continue", 1},
	{"byte4", 8},
	{"byte5", 8},
	{"byte6", 8},
	{"byte7", 4},
	{"checksum", checksumWidth},
	{"end", 1},
}

// FormatFrame renders one line per field of a frame for the given variant:
// offset, name, codes and the LSB-first value of data spans. Input shorter
// than the layout ends the dump at the last complete field.
func FormatFrame(v Variant, codes []Code) string {
	layout := structuredLayout
	if v != nil && v.Name() == PackedBytes.Name() {
		layout = packedLayout
	}

	var sb strings.Builder
	pos := 0
	for _, f := range layout {
		if pos+f.width > len(codes) {
			fmt.Fprintf(&sb, "  %2d  %-12s (truncated)\n", pos, f.name)
			break
		}
		span := codes[pos : pos+f.width]
		fmt.Fprintf(&sb, "  %2d  %-12s %-12s", pos, f.name, FormatCodes(span))
		if value, ok := spanValue(span); ok && f.width > 1 {
			fmt.Fprintf(&sb, " = %d", value)
		}
		sb.WriteString("\n")
		pos += f.width
	}
	if pos < len(codes) {
		fmt.Fprintf(&sb, "  %2d  %-12s %s\n", pos, "trailing", FormatCodes(codes[pos:]))
	}
	return sb.String()
}

func spanValue(span []Code) (uint8, bool) {
	if len(span) > 8 {
		return 0, false
	}
	var v uint8
	for i, c := range span {
		b, err := c.Byte()
		if err != nil {
			return 0, false
		}
		v |= b << i
	}
	return v, true
}

// FormatController renders a state as a single human-readable line.
func FormatController(c Controller) string {
	power := "off"
	if c.On {
		power = "on"
	}
	result := fmt.Sprintf("%s %s %s fan=%s timer=%s", power, c.Mode, c.Temperature, c.Fan, c.Timer)

	var flags []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"swing", c.Swing},
		{"sleep", c.Sleep},
		{"strong", c.Strong},
		{"light", c.Light},
		{"anion", c.Anion},
		{"dry", c.Dry},
		{"ventilate", c.Ventilate},
		{"i-feel", c.IFeel},
		{"wifi", c.WiFi},
		{"econo", c.Econo},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	if len(flags) > 0 {
		result += " [" + strings.Join(flags, ",") + "]"
	}

	result += fmt.Sprintf(" vswing=%s hswing=%s display=%s", c.VSwing, c.HSwing, c.TemperatureDisplay)
	return result
}
