// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

var (
	listenFramesOnly bool
	listenNoCapture  bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Display bridge packets and captured frames as they arrive",
	Long: `Continuously decode and display IR bridge packets as they arrive.

Every packet is shown with its timestamp, message type and payload. Frames
captured from a remote are also decoded with the selected variant, so
pressing buttons on the stock remote shows the state it sent.

Supports both serial and WebSocket connections.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolVar(&listenFramesOnly, "frames-only", false, "Only show captured frames")
	listenCmd.Flags().BoolVar(&listenNoCapture, "no-capture", false, "Do not ask the bridge to enable frame capture")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Mistral - Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Variant: %s\n", session.Variant().Name())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	result := startSession(ctx, session)
	if !listenNoCapture {
		if err := session.ConfigureCapture(true); err != nil {
			log.Printf("Failed to enable capture: %v", err)
		}
	}

	for ev := range session.Events() {
		printEvent(ev, listenFramesOnly)
	}

	if err := <-result; err != nil {
		log.Printf("Connection closed: %v", err)
	}
	return nil
}

// printEvent writes one session event in the packet log format
func printEvent(ev link.Event, framesOnly bool) {
	if ev.Packet == nil {
		if !framesOnly && ev.Err != nil {
			fmt.Printf("[ERROR] %v\n", ev.Err)
		}
		return
	}
	if framesOnly && !ev.IsFrame() {
		return
	}

	fmt.Print(irlink.FormatPacket(ev.Packet))
	for _, v := range ev.Validation {
		fmt.Printf("  [ANOMALY] %s\n", v.Error())
	}
	if !ev.IsFrame() {
		return
	}
	switch {
	case ev.State != nil:
		fmt.Printf("  State: %s\n", aircode.FormatController(*ev.State))
	case ev.Err != nil:
		fmt.Printf("  [REJECTED %s] %v\n", aircode.ErrorKind(ev.Err), ev.Err)
	}
}
