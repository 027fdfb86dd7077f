// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

var (
	encodeState   stateFlags
	encodeExplain bool
	encodeAll     bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode [state-file]",
	Short: "Encode a state into a 70-code frame",
	Long: `Encode an air conditioner state into the codes of one frame.

The state comes from a YAML or JSON state file, a named preset, or the
default state, with --set overrides applied on top. Codes are printed one
character each: S, C, E for the start, continue and end markers and 0, 1
for short and long codes.

Examples:
  mistral encode --set mode=cold --set temperature=24 --set fan=level2
  mistral encode bedroom.yaml --explain
  mistral encode --preset night --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeState.register(encodeCmd)
	encodeCmd.Flags().BoolVar(&encodeExplain, "explain", false, "Show the frame field by field")
	encodeCmd.Flags().BoolVar(&encodeAll, "all", false, "Encode with every frame variant")
}

func runEncode(cmd *cobra.Command, args []string) error {
	c, err := encodeState.load(args)
	if err != nil {
		return err
	}

	variants := []aircode.Variant{cfg.FrameVariant()}
	if encodeAll {
		variants = aircode.Variants()
	}

	fmt.Printf("State: %s\n", aircode.FormatController(c))
	for _, v := range variants {
		codes := v.Encode(c)
		fmt.Printf("%-10s %s\n", v.Name()+":", aircode.FormatCodes(codes))
		if encodeExplain {
			fmt.Print(aircode.FormatFrame(v, codes))
		}
	}
	return nil
}
