// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Detect and analyze link errors and rejected frames",
	Long: `Track link errors, malformed packets and rejected frames with statistics.

This command validates each packet and detects:
  - CRC errors and link decode failures
  - Malformed packets (missing codes, length mismatches, invalid code bytes)
  - Captured frames that fail to decode, by reason (marker, magic, range,
    checksum, length)
  - Statistics and trends (packet rate, error rate, frame success rate)

By default, only errors are displayed. Use --show-all to display valid
packets and decoded frames too.

Link errors before the first valid packet are counted as sync noise and
left out of the statistics.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}
	result := startSession(ctx, session)
	if err := session.ConfigureCapture(true); err != nil {
		log.Printf("Failed to enable capture: %v", err)
	}

	if useTUI {
		err = runMonitorTUI(session, connInfo)
		cancel()
		<-result
		return err
	}
	runMonitorText(session, connInfo)
	return <-result
}

// syncTracker ignores link errors until the first valid packet
type syncTracker struct {
	synchronized bool
	invalid      int
}

// observe reports whether ev is past synchronization and whether ev is
// the packet that synchronized the link. The session statistics are
// cleared on sync so noise before it is not counted.
func (t *syncTracker) observe(session *link.Session, ev link.Event) (synced, justSynced bool) {
	if t.synchronized {
		return true, false
	}
	if ev.Packet == nil {
		t.invalid++
		return false, false
	}
	t.synchronized = true
	session.ResetStatistics()
	return true, true
}

// runMonitorTUI runs the monitor in TUI mode
func runMonitorTUI(session *link.Session, connInfo string) error {
	m := initialMonitorModel(connInfo, session.Variant().Name(), showAll, session.Statistics)
	p := tea.NewProgram(m)

	go func() {
		var tracker syncTracker
		for ev := range session.Events() {
			synced, justSynced := tracker.observe(session, ev)
			if justSynced {
				p.Send(syncMsg{invalidBytes: tracker.invalid})
			}
			if synced {
				p.Send(linkEventMsg{event: ev})
			}
		}
		p.Send(linkClosedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// printLinkError prints a link decode error in highlighted format
func printLinkError(ev link.Event) {
	timestamp := ev.Time.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mLINK ERROR:\033[0m %v\n", timestamp, ev.Err)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printPingResponse prints a ping response with uptime
func printPingResponse(packet *irlink.Packet) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	uptime, ok := irlink.GetMapUint(packet.PayloadMap(), 0)
	if !ok {
		fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m Missing uptime\n\n", timestamp)
		return
	}
	fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m Bridge uptime: %s\n\n", timestamp, formatUptime(uptime))
}

// printValidationErrors prints validation errors for a packet
func printValidationErrors(packet *irlink.Packet, errors []irlink.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	msgType := irlink.FormatMessageType(packet.Type())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, msgType, packet.Type())
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range errors {
		switch err.Type {
		case irlink.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if length, ok := err.Details["length"].(int); ok {
				fmt.Printf("    Codes: received=%d, expected=%d\n", length, aircode.FrameLength)
			}

		case irlink.AnomalyMissingCodes, irlink.AnomalyInvalidSymbol:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case irlink.AnomalyInvalidRepeat, irlink.AnomalyInvalidValue:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  >>> PACKET REJECTED <<<\n\n")
}

// printRejectedFrame prints a captured frame that failed to decode
func printRejectedFrame(ev link.Event) {
	timestamp := ev.Time.Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;33mFRAME REJECTED:\033[0m %s\n", timestamp, aircode.ErrorKind(ev.Err))
	fmt.Printf("  Reason: %v\n", ev.Err)
	fmt.Printf("  Codes: %s\n", aircode.FormatCodes(ev.Codes))
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runMonitorText runs the monitor in text mode until the link closes
func runMonitorText(session *link.Session, connInfo string) {
	fmt.Printf("Mistral - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Variant: %s\n", session.Variant().Name())
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var tracker syncTracker

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events := session.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				stats := session.Statistics()
				fmt.Println()
				fmt.Print(stats.String())
				return
			}

			synced, justSynced := tracker.observe(session, ev)
			if justSynced {
				if tracker.invalid > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d link errors\n\n", tracker.invalid)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}
			if !synced {
				continue
			}

			switch {
			case ev.Packet == nil:
				printLinkError(ev)
			case len(ev.Validation) > 0:
				printValidationErrors(ev.Packet, ev.Validation)
			case ev.IsFrame() && ev.Err != nil:
				printRejectedFrame(ev)
			case ev.Packet.Type() == irlink.MsgPingResponse:
				// Always print ping responses (for debugging)
				printPingResponse(ev.Packet)
			case showAll:
				printEvent(ev, false)
			}

		case <-statsTicker.C:
			stats := session.Statistics()
			stats.CalculateRates()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
