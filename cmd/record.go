// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/mistral/internal/capture"
	"github.com/Thermoquad/mistral/internal/logging"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

var (
	recordLimit int
	recordQuiet bool
)

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record captured frames to a capture file",
	Long: `Enable frame capture on the bridge and append every captured frame to
a capture file until interrupted.

Frames that fail to decode are recorded too, together with the reason they
were rejected, so a capture can be replayed later with another variant.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().IntVarP(&recordLimit, "count", "n", 0, "Stop after this many frames (0 = no limit)")
	recordCmd.Flags().BoolVarP(&recordQuiet, "quiet", "q", false, "Do not print frames as they are recorded")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()
	buf := bufio.NewWriter(f)
	defer buf.Flush()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}
	w, err := capture.NewWriter(buf, session.Variant().Name())
	if err != nil {
		return err
	}

	fmt.Printf("Mistral - Record\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Capture: %s (session %s)\n", args[0], w.Header().Session)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	result := startSession(ctx, session)
	if err := session.ConfigureCapture(true); err != nil {
		return fmt.Errorf("failed to enable capture: %w", err)
	}

	count := 0
	for ev := range session.Events() {
		if !ev.IsFrame() || ev.Codes == nil {
			continue
		}
		if err := w.Write(capture.NewRecord(ev.Time, ev.Packet.Address(), ev.Codes, ev.Err)); err != nil {
			return err
		}
		// Keep the file usable if the process is killed
		if err := buf.Flush(); err != nil {
			return fmt.Errorf("failed to write capture file: %w", err)
		}
		count++
		logging.Debug("Recorded frame", zap.Int("count", count), zap.Uint64("address", ev.Packet.Address()))

		if !recordQuiet {
			timestamp := ev.Time.Format("15:04:05.000")
			if ev.Err != nil {
				fmt.Printf("[%s] #%d REJECTED (%s)\n", timestamp, count, aircode.ErrorKind(ev.Err))
			} else {
				fmt.Printf("[%s] #%d %s\n", timestamp, count, aircode.FormatController(*ev.State))
			}
		}
		if recordLimit > 0 && count >= recordLimit {
			cancel()
			break
		}
	}

	<-result
	fmt.Printf("\nRecorded %d frames to %s\n", count, args[0])
	return nil
}
