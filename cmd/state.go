// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

// stateFlags selects the state a command works on
type stateFlags struct {
	preset string
	sets   []string
	format string
}

func (f *stateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.preset, "preset", "", "Start from a named preset in the config file")
	cmd.Flags().StringArrayVarP(&f.sets, "set", "s", nil, "Override a field, e.g. --set mode=cold --set temperature=24")
	cmd.Flags().StringVar(&f.format, "format", "", "State document format for stdin (yaml, json)")
}

// load builds the state from, in order: the preset or the state file
// argument ("-" reads stdin), then each --set override. With neither the
// default state is used.
func (f *stateFlags) load(args []string) (aircode.Controller, error) {
	var c aircode.Controller
	var err error

	switch {
	case f.preset != "" && len(args) > 0:
		return c, fmt.Errorf("--preset and a state file are mutually exclusive")
	case f.preset != "":
		c, err = cfg.Preset(f.preset)
	case len(args) > 0 && args[0] == "-":
		c, err = f.loadStdin()
	case len(args) > 0:
		c, err = statefile.Load(args[0])
	}
	if err != nil {
		return c, err
	}

	if len(f.sets) == 0 {
		return c, nil
	}
	overrides, err := setsToYAML(f.sets)
	if err != nil {
		return c, err
	}
	return statefile.Merge(c, overrides, statefile.FormatYAML)
}

func (f *stateFlags) loadStdin() (aircode.Controller, error) {
	format := statefile.FormatYAML
	if f.format != "" {
		parsed, err := statefile.ParseFormat(f.format)
		if err != nil {
			return aircode.Controller{}, err
		}
		format = parsed
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return aircode.Controller{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	return statefile.Unmarshal(data, format)
}

// setsToYAML turns key=value pairs into a YAML fragment. Dotted keys
// address nested fields, e.g. timer.hours=2.
func setsToYAML(sets []string) ([]byte, error) {
	nested := make(map[string][]string)
	var order []string
	var sb strings.Builder

	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", kv)
		}
		value = strings.TrimSpace(value)

		if parent, child, dotted := strings.Cut(key, "."); dotted {
			if _, seen := nested[parent]; !seen {
				order = append(order, parent)
			}
			nested[parent] = append(nested[parent], fmt.Sprintf("  %s: %s\n", child, value))
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", key, value)
	}

	for _, parent := range order {
		fmt.Fprintf(&sb, "%s:\n", parent)
		for _, line := range nested[parent] {
			sb.WriteString(line)
		}
	}
	return []byte(sb.String()), nil
}
