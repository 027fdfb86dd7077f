// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/discovery"
	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

var (
	discoverTimeout int
	discoverMDNS    bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover IR bridges on the link or the local network",
	Long: `Find IR bridges.

Modes:
  Link (default): Send broadcast DISCOVERY_REQUEST over the serial port or
                  WebSocket. Each bridge responds with DEVICE_ANNOUNCE; a
                  router sends an end-of-discovery marker after the last one.

  mDNS (--mdns):  Browse the local network for WebSocket bridges
                  advertising _mistral._tcp. No connection flags are needed.

Examples:
  # Direct serial discovery
  mistral discover --port /dev/ttyUSB0

  # Find WebSocket bridges, then connect to one
  mistral discover --mdns
  mistral listen --url ws://living-room.local/ws

Exit codes:
  0 - Discovery successful (at least one bridge found)
  1 - Discovery failed (no bridges or timeout)
  2 - Connection error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Timeout in seconds for discovery")
	discoverCmd.Flags().BoolVar(&discoverMDNS, "mdns", false, "Browse the local network with mDNS")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(discoverTimeout) * time.Second
	if discoverMDNS {
		return runDiscoverMDNS(cmd.Context(), timeout)
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

	fmt.Printf("Mistral - Bridge Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoverTimeout)
	fmt.Printf("Sending DISCOVERY_REQUEST (address=0x%016X)...\n", uint64(irlink.AddressBroadcast))

	discoverCtx, discoverCancel := context.WithTimeout(ctx, timeout)
	defer discoverCancel()
	bridges, err := session.Discover(discoverCtx)

	for _, b := range bridges {
		printLinkBridge(b)
	}

	switch {
	case err == nil:
		fmt.Printf("\nEnd of discovery marker received\n")
	case errors.Is(err, context.DeadlineExceeded):
		// Point-to-point bridges never send the end marker
		if len(bridges) > 0 {
			fmt.Printf("\nDiscovery timeout reached\n")
		} else {
			fmt.Printf("\nTIMEOUT: No bridges responded in %ds\n", discoverTimeout)
		}
	default:
		fmt.Printf("\nREAD FAILED: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Bridges found: %d\n", len(bridges))
	if len(bridges) == 0 {
		fmt.Printf("No bridges discovered. Check connection and bridge power.\n")
		os.Exit(1)
	}
	return nil
}

func printLinkBridge(b link.Bridge) {
	fmt.Printf("\nBridge found:\n")
	fmt.Printf("  Address: 0x%016X\n", b.Address)
	fmt.Printf("  Receive: %s\n", yesNo(b.CanReceive))
	fmt.Printf("  Transmit: %s\n", yesNo(b.CanTransmit))
}

func runDiscoverMDNS(ctx context.Context, timeout time.Duration) error {
	fmt.Printf("Mistral - mDNS Bridge Discovery\n")
	fmt.Printf("Service: %s.%s\n", discovery.ServiceType, discovery.ServiceDomain)
	fmt.Printf("Timeout: %d seconds\n\n", discoverTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout
	bridges, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Printf("SCAN FAILED: %v\n", err)
		os.Exit(2)
	}

	for _, b := range bridges {
		fmt.Printf("Bridge found: %s\n", b)
		fmt.Printf("  URL: %s\n", b.URL())
		keys := make([]string, 0, len(b.Metadata))
		for k := range b.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, b.Metadata[k])
		}
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Bridges found: %d\n", len(bridges))
	if len(bridges) == 0 {
		fmt.Printf("No bridges discovered. Check that the bridge is on this network.\n")
		os.Exit(1)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
