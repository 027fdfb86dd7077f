// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

var (
	waitTimeout int
	waitAny     bool
	waitOutput  string
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a valid frame from the remote",
	Long: `Wait until the bridge captures a frame that decodes with the selected
variant, then print the state it carries.

Frames that fail to decode are reported and skipped. With --any, the first
valid link packet of any type ends the wait instead, which is useful for
testing connectivity to the bridge.

Exit codes:
  0 - Frame (or packet) received before timeout
  1 - Timeout reached without receiving one
  2 - Connection error`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntVar(&waitTimeout, "timeout", 30, "Timeout in seconds to wait")
	waitCmd.Flags().BoolVar(&waitAny, "any", false, "Accept any valid link packet")
	waitCmd.Flags().StringVarP(&waitOutput, "output", "o", "", "Print the state as a document (yaml, json)")
}

func runWait(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(waitTimeout)*time.Second)
	defer cancel()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Mistral - Wait\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", waitTimeout)
	if waitAny {
		fmt.Printf("Waiting for valid link packet...\n\n")
	} else {
		fmt.Printf("Waiting for valid %s frame...\n\n", session.Variant().Name())
	}

	result := startSession(ctx, session)
	if err := session.ConfigureCapture(true); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		os.Exit(2)
	}

	skipped := 0
	for ev := range session.Events() {
		if ev.Packet == nil {
			skipped++
			continue
		}
		if waitAny {
			cancel()
			reportPacket(ev.Packet, skipped)
			os.Exit(0)
		}
		if !ev.IsFrame() {
			continue
		}
		if ev.State == nil {
			fmt.Printf("Skipping frame: %s (%v)\n", aircode.ErrorKind(ev.Err), ev.Err)
			continue
		}
		cancel()
		if err := reportFrame(ev, waitOutput); err != nil {
			return err
		}
		os.Exit(0)
	}

	if err := <-result; err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "TIMEOUT: Nothing received within %d seconds\n", waitTimeout)
	os.Exit(1)
	return nil
}

func reportPacket(p *irlink.Packet, skipped int) {
	if skipped > 0 {
		fmt.Printf("(skipped %d link errors before sync)\n", skipped)
	}
	fmt.Printf("SUCCESS: Received valid packet\n")
	fmt.Printf("  Type: %s (0x%02X)\n", irlink.FormatMessageType(p.Type()), p.Type())
	fmt.Printf("  Address: 0x%016X\n", p.Address())
	fmt.Printf("  Length: %d bytes\n", p.Length())
	fmt.Printf("  CRC: 0x%04X\n", p.CRC())
}

func reportFrame(ev link.Event, output string) error {
	fmt.Printf("SUCCESS: Received valid frame\n")
	fmt.Printf("  Bridge: 0x%016X\n", ev.Packet.Address())
	fmt.Printf("  Codes: %s\n", aircode.FormatCodes(ev.Codes))
	if output == "" {
		fmt.Printf("  State: %s\n", aircode.FormatController(*ev.State))
		return nil
	}
	format, err := statefile.ParseFormat(output)
	if err != nil {
		return err
	}
	data, err := statefile.Marshal(*ev.State, format)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
