// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

var (
	sendState   stateFlags
	sendRepeat  int
	sendTimeout int
	sendSave    string
)

var sendCmd = &cobra.Command{
	Use:   "send [state-file]",
	Short: "Transmit a state to the air conditioner",
	Long: `Encode a state and transmit it through the IR bridge.

The state is chosen the same way as for encode. The command waits for the
bridge to report that the frame was sent.

Exit codes:
  0 - Frame transmitted
  1 - Bridge rejected or did not finish the transmission
  2 - Connection error`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendState.register(sendCmd)
	sendCmd.Flags().IntVar(&sendRepeat, "repeat", 1, "Number of times the bridge sends the frame")
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 5, "Timeout in seconds to wait for the bridge")
	sendCmd.Flags().StringVar(&sendSave, "save", "", "Write the transmitted state to this file")
}

func runSend(cmd *cobra.Command, args []string) error {
	c, err := sendState.load(args)
	if err != nil {
		return err
	}
	repeat, err := checkRepeat(sendRepeat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	drainEvents(session)
	startSession(ctx, session)

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Variant: %s\n", session.Variant().Name())
	fmt.Printf("State: %s\n", aircode.FormatController(c))

	txCtx, txCancel := context.WithTimeout(ctx, time.Duration(sendTimeout)*time.Second)
	defer txCancel()
	result, err := session.TransmitState(txCtx, c, repeat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "TRANSMIT FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("SUCCESS: %d codes sent in %v\n", result.Codes, result.Duration)

	if sendSave != "" {
		if err := statefile.Save(sendSave, c); err != nil {
			return err
		}
		fmt.Printf("State saved to %s\n", sendSave)
	}
	return nil
}
