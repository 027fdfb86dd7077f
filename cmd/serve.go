// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/mistral/internal/api"
	"github.com/Thermoquad/mistral/internal/discovery"
	"github.com/Thermoquad/mistral/internal/logging"
)

var (
	serveNoLink   bool
	serveAnnounce string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the encode, decode and transmit operations over HTTP.

Routes:
  GET  /health                     service and link status
  POST /v1/encode                  state document to codes
  POST /v1/decode                  codes to state document
  POST /v1/transmit                send a state through the bridge
  GET  /v1/presets                 list configured presets
  POST /v1/presets/:name/transmit  send a preset through the bridge

With --no-link the server runs without a bridge and the transmit routes
answer 503. With --announce the API is advertised over mDNS.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "Address the HTTP API listens on")
	serveCmd.Flags().BoolVar(&serveNoLink, "no-link", false, "Serve without a bridge connection")
	serveCmd.Flags().StringVar(&serveAnnounce, "announce", "", "Advertise the API over mDNS under this instance name")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	opts := api.Options{
		Addr:    cfg.API.Listen,
		Variant: cfg.FrameVariant(),
		Presets: cfg.Presets,
	}
	if !serveNoLink {
		session, connInfo, err := openSession(ctx)
		if err != nil {
			return err
		}
		logging.Info("Connected to bridge", zap.String("connection", connInfo))
		drainEvents(session)
		g.Go(func() error {
			return session.Run(gctx)
		})
		opts.Transmitter = session
	}

	server := api.NewServer(opts)

	if serveAnnounce != "" {
		port, err := listenPort(cfg.API.Listen)
		if err != nil {
			return err
		}
		txt := []string{"variant=" + opts.Variant.Name(), "path=/v1"}
		announcement, err := discovery.Announce(serveAnnounce, port, txt)
		if err != nil {
			return err
		}
		defer announcement.Shutdown()
	}

	fmt.Printf("Mistral - HTTP API\n")
	fmt.Printf("Listening: %s\n", cfg.API.Listen)
	fmt.Printf("Variant: %s\n", opts.Variant.Name())
	fmt.Printf("Press Ctrl+C to exit\n")

	g.Go(server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// listenPort returns the TCP port of a listen address
func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("listen address %q needs a fixed port to announce", addr)
	}
	return port, nil
}
