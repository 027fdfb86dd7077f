// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the IR bridge by sending PING_REQUEST",
	Long: `Send PING_REQUEST packets to the IR bridge and wait for PING_RESPONSE.

The bridge answers with its uptime. This is useful for verifying:
  - The serial port or WebSocket connection is established
  - HTTP Basic authentication works
  - The bridge is processing packets
  - Bidirectional packet flow works

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return fmt.Errorf("--count must be at least 1")
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

	fmt.Printf("Mistral - Bridge Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Bridge: %s\n", formatAddress(cfg.Connection.Address))
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		pingCtx, pingCancel := context.WithTimeout(ctx, time.Duration(pingTimeout)*time.Second)
		uptime, rtt, err := session.Ping(pingCtx)
		pingCancel()

		switch {
		case err == nil:
			fmt.Printf("PONG from bridge, uptime=%s, rtt=%v\n",
				formatUptime(uint64(uptime.Milliseconds())), rtt.Round(time.Millisecond))
			successCount++
		case errors.Is(err, context.DeadlineExceeded):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		default:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		}

		if ctx.Err() != nil {
			break
		}
		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	sent := successCount + failCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		sent, successCount, float64(failCount)/float64(sent)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
