// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/capture"
	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

var (
	replayTransmit bool
	replayRepeat   int
	replayDelay    time.Duration
	replayExplain  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode the frames of a capture file",
	Long: `Read a capture file written by record and decode every frame with the
selected variant (--variant). The variant does not have to match the one
the capture was recorded with.

With --transmit, every frame that decodes is sent through the bridge again.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayTransmit, "transmit", false, "Send decoded frames through the bridge")
	replayCmd.Flags().IntVar(&replayRepeat, "repeat", 1, "Number of times the bridge sends each frame")
	replayCmd.Flags().DurationVar(&replayDelay, "delay", 500*time.Millisecond, "Pause between transmitted frames")
	replayCmd.Flags().BoolVar(&replayExplain, "explain", false, "Show the frame fields of each record")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	repeat, err := checkRepeat(replayRepeat)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	r, err := capture.NewReader(bufio.NewReader(f))
	if err != nil {
		return err
	}
	header := r.Header()
	variant := cfg.FrameVariant()

	fmt.Printf("Capture: %s\n", args[0])
	fmt.Printf("Session: %s\n", header.Session)
	fmt.Printf("Recorded: %s (variant %s)\n", header.Started.Format(time.RFC3339), header.Variant)
	fmt.Printf("Decoding with: %s\n\n", variant.Name())

	var session *link.Session
	if replayTransmit {
		var connInfo string
		session, connInfo, err = openSession(ctx)
		if err != nil {
			return err
		}
		drainEvents(session)
		startSession(ctx, session)
		fmt.Printf("Connection: %s\n\n", connInfo)
	}

	var total, decoded, sent int
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		total++

		timestamp := rec.Time.Format("15:04:05.000")
		codes, err := rec.Frame()
		if err != nil {
			fmt.Printf("[%s] #%d UNREADABLE: %v\n", timestamp, total, err)
			continue
		}
		c, err := variant.Decode(codes)
		if err != nil {
			fmt.Printf("[%s] #%d REJECTED (%s): %v\n", timestamp, total, aircode.ErrorKind(err), err)
			continue
		}
		decoded++
		fmt.Printf("[%s] #%d %s\n", timestamp, total, aircode.FormatController(c))
		if replayExplain {
			fmt.Print(aircode.FormatFrame(variant, codes))
		}

		if session == nil {
			continue
		}
		txCtx, txCancel := context.WithTimeout(ctx, 5*time.Second)
		result, err := session.TransmitState(txCtx, c, repeat)
		txCancel()
		if err != nil {
			fmt.Printf("  TRANSMIT FAILED: %v\n", err)
		} else {
			sent++
			fmt.Printf("  sent %d codes in %v\n", result.Codes, result.Duration)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(replayDelay):
		}
	}

	fmt.Printf("\n%d records, %d decoded, %d rejected", total, decoded, total-decoded)
	if session != nil {
		fmt.Printf(", %d transmitted", sent)
	}
	fmt.Println()
	return nil
}
