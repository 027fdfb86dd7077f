// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

var (
	decodeOutput  string
	decodeExplain bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode [codes...]",
	Short: "Decode a 70-code frame into a state",
	Long: `Decode the codes of one frame, as printed by encode, into a state.

Codes are read from the arguments, or from stdin when none are given.
Whitespace, '_' and '|' are ignored so grouped frames can be pasted as is.

Exit codes:
  0 - Frame decoded
  1 - Frame rejected (the reason is printed)`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "Print the state as a document (yaml, json)")
	decodeCmd.Flags().BoolVar(&decodeExplain, "explain", false, "Show the frame field by field")
}

func runDecode(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	codes, err := aircode.ParseCodes(text)
	if err != nil {
		return err
	}

	variant := cfg.FrameVariant()
	if decodeExplain {
		fmt.Print(aircode.FormatFrame(variant, codes))
	}

	c, err := variant.Decode(codes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "REJECTED (%s): %v\n", aircode.ErrorKind(err), err)
		var sumErr *aircode.ChecksumError
		if errors.As(err, &sumErr) {
			fmt.Fprintf(os.Stderr, "  checksum nibbles: 0x%02X\n", sumErr.Nibbles())
		}
		os.Exit(1)
	}

	if decodeOutput == "" {
		fmt.Println(aircode.FormatController(c))
		return nil
	}
	format, err := statefile.ParseFormat(decodeOutput)
	if err != nil {
		return err
	}
	data, err := statefile.Marshal(c, format)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(string(data), "\n"))
	return nil
}
