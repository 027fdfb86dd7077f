// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/mistral/internal/discovery"
	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/logging"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

// PasswordEnvVar holds the WebSocket password
const PasswordEnvVar = "MISTRAL_PASSWORD"

// GetPassword retrieves password from config, environment or prompts user
func GetPassword() (string, error) {
	if cfg.Connection.Password != "" {
		return cfg.Connection.Password, nil
	}
	if pw := os.Getenv(PasswordEnvVar); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}
	fmt.Fprintln(os.Stderr)

	return string(passwordBytes), nil
}

// findBridge resolves a WebSocket bridge by mDNS instance name. A bridge
// that advertises its link address becomes the request target unless
// --address is set.
func findBridge(ctx context.Context, name string) (*discovery.Bridge, error) {
	scanner := discovery.NewScanner()
	b, err := scanner.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	logging.Info("Resolved bridge", zap.String("name", b.Name), zap.String("url", b.URL()))
	if cfg.Connection.Address == 0 {
		cfg.Connection.Address = b.Address
	}
	return b, nil
}

// linkOptions builds the link options from the loaded config
func linkOptions(ctx context.Context) (link.Options, error) {
	conn := cfg.Connection
	opts := link.Options{
		Port:        conn.Port,
		Baud:        conn.Baud,
		URL:         conn.URL,
		Username:    conn.Username,
		NoSSLVerify: conn.NoSSLVerify,
	}
	if opts.URL == "" && opts.Port == "" && bridgeName != "" {
		b, err := findBridge(ctx, bridgeName)
		if err != nil {
			return link.Options{}, err
		}
		opts.URL = b.URL()
	}
	if opts.URL != "" && opts.Username != "" {
		password, err := GetPassword()
		if err != nil {
			return link.Options{}, err
		}
		// Reconnects must not prompt again
		cfg.Connection.Password = password
		opts.Password = password
	}
	return opts, nil
}

// OpenConnection opens either a serial or WebSocket connection based on flags
func OpenConnection(ctx context.Context) (link.Connection, string, error) {
	opts, err := linkOptions(ctx)
	if err != nil {
		return nil, "", err
	}
	return link.Open(ctx, opts)
}

// openSession opens the bridge link and wraps it in a session using the
// configured variant and bridge address. The caller runs the session.
func openSession(ctx context.Context) (*link.Session, string, error) {
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return nil, "", err
	}
	session := link.NewSession(conn,
		link.WithVariant(cfg.FrameVariant()),
		link.WithAddress(cfg.Connection.Address),
	)
	return session, connInfo, nil
}

// startSession runs session in the background. The returned channel
// yields the result of Run once it returns.
func startSession(ctx context.Context, session *link.Session) <-chan error {
	result := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		if err != nil {
			logging.Warn("Link session ended", zap.Error(err))
		}
		result <- err
	}()
	return result
}

// drainEvents discards session events so Run never blocks
func drainEvents(session *link.Session) {
	go func() {
		for range session.Events() {
		}
	}()
}

// checkRepeat validates a --repeat flag value
func checkRepeat(repeat int) (uint8, error) {
	if repeat < 1 || repeat > irlink.MaxRepeat {
		return 0, fmt.Errorf("--repeat must be between 1 and %d", irlink.MaxRepeat)
	}
	return uint8(repeat), nil
}

// formatAddress renders a bridge address
func formatAddress(address uint64) string {
	switch address {
	case irlink.AddressBroadcast:
		return "any"
	case irlink.AddressStateless:
		return "stateless"
	}
	return fmt.Sprintf("0x%016X", address)
}
