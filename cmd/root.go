// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/config"
	"github.com/Thermoquad/mistral/internal/logging"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
	bridgeName    string

	// Bridge and frame flags
	bridgeAddress uint64
	variantName   string

	// Config and diagnostics flags
	configPath string
	logLevel   string
	logFile    string

	// cfg is loaded before any command runs
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "mistral",
	Short: "Split air conditioner IR codec and bridge tool",
	Long: `Mistral - Encode, decode, capture and transmit split air conditioner
infrared frames.

Frames are 70 codes long. Two layouts are understood: the structured frame
sent by the stock remote ("structured") and the packed-byte frame
("packed"). Select one with --variant.

Commands that talk to the air conditioner use an IR bridge, reached over a
serial port or a WebSocket.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]
  mDNS:      --bridge name (resolves a WebSocket bridge on the local network)

For WebSocket authentication, the password is read from the MISTRAL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also come from $XDG_CONFIG_HOME/mistral/config.yaml, which can
hold named state presets.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "admin", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	rootCmd.PersistentFlags().StringVar(&bridgeName, "bridge", "", "Find the WebSocket bridge with this mDNS name")

	// Bridge and frame flags
	rootCmd.PersistentFlags().Uint64Var(&bridgeAddress, "address", 0, "Bridge address (0 = any bridge)")
	rootCmd.PersistentFlags().StringVar(&variantName, "variant", "structured", "Frame variant (structured, packed)")

	// Config and diagnostics flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $XDG_CONFIG_HOME/mistral/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON diagnostics to this file (rotated)")
}

// loadConfig merges the config file, environment and flags into cfg and
// starts diagnostics logging
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = loaded

	if err := logging.Initialize(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// Execute runs the root command. Interrupt and terminate signals cancel
// the command context.
func Execute() error {
	defer logging.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
