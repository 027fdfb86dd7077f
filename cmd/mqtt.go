// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Thermoquad/mistral/internal/hass"
	"github.com/Thermoquad/mistral/internal/logging"
)

var mqttRepeat int

var mqttCmd = &cobra.Command{
	Use:   "mqtt",
	Short: "Bridge the air conditioner to Home Assistant over MQTT",
	Long: `Expose the air conditioner as a Home Assistant climate entity.

The bridge publishes a discovery config, publishes every state decoded from
frames captured off the stock remote and transmits the commands Home
Assistant sends. Broker, topics and device identity come from the mqtt
section of the config file; --broker overrides the broker URL.

The command exits when the bridge link closes, so it can be restarted by a
service manager.`,
	RunE: runMQTT,
}

func init() {
	rootCmd.AddCommand(mqttCmd)
	mqttCmd.Flags().String("broker", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	mqttCmd.Flags().IntVar(&mqttRepeat, "repeat", hass.DefaultRepeat, "Number of times the bridge sends each command frame")
}

func runMQTT(cmd *cobra.Command, args []string) error {
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("no MQTT broker configured (use --broker or mqtt.broker)")
	}
	repeat, err := checkRepeat(mqttRepeat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}
	logging.Info("Connected to bridge", zap.String("connection", connInfo), zap.String("variant", session.Variant().Name()))

	m := cfg.MQTT
	bridge := hass.New(hass.Config{
		Broker:          m.Broker,
		ClientID:        m.ClientID,
		Username:        m.Username,
		Password:        m.Password,
		Prefix:          m.Prefix,
		DiscoveryPrefix: m.DiscoveryPrefix,
		DeviceID:        m.DeviceID,
		DeviceName:      m.DeviceName,
		Repeat:          repeat,
	}, session)

	fmt.Printf("Mistral - MQTT Bridge\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Broker: %s\n", m.Broker)
	fmt.Printf("Topics: %s/#\n", m.Prefix)
	fmt.Printf("Press Ctrl+C to exit\n")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		if err := session.ConfigureCapture(true); err != nil {
			logging.Warn("Failed to enable capture", zap.Error(err))
		}
		return bridge.Run(gctx, session.Events())
	})
	return g.Wait()
}
