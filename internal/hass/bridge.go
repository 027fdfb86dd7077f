// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/logging"
	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	commandMode        = "mode"
	commandFan         = "fan"
	commandSwing       = "swing"
	commandTemperature = "temperature"

	// DefaultRepeat is how many times each command frame is sent
	DefaultRepeat = 1

	disconnectQuiesce = 1000 // ms
	publishTimeout    = time.Second
)

// ErrUnknownCommand is returned for command topics the bridge does not serve
var ErrUnknownCommand = errors.New("hass: unknown command")

// Config configures the MQTT bridge
type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	Prefix          string
	DiscoveryPrefix string
	DeviceID        string
	DeviceName      string
	Repeat          uint8
}

// Transmitter sends a state to the air conditioner
type Transmitter interface {
	TransmitState(ctx context.Context, c aircode.Controller, repeat uint8) (link.TransmitResult, error)
}

// Bridge relays between MQTT and an IR link session
type Bridge struct {
	cfg    Config
	client mqtt.Client
	tx     Transmitter

	// One transmission in flight; further commands queue
	txSem *semaphore.Weighted

	mu    sync.Mutex
	ctx   context.Context
	state aircode.Controller
	known bool
}

// New creates a bridge with a paho client for cfg. An empty ClientID gets a
// random one.
func New(cfg Config, tx Transmitter) *Bridge {
	if cfg.ClientID == "" {
		cfg.ClientID = "mistral-" + uuid.NewString()
	}
	b := newBridge(cfg, nil, tx)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectRetry(true).
		SetAutoReconnect(true).
		SetKeepAlive(30*time.Second).
		SetWill(b.availabilityTopic(), payloadOffline, 1, true).
		SetOnConnectHandler(b.connected).
		SetConnectionLostHandler(b.connectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	b.client = mqtt.NewClient(opts)
	return b
}

func newBridge(cfg Config, client mqtt.Client, tx Transmitter) *Bridge {
	if cfg.Repeat == 0 {
		cfg.Repeat = DefaultRepeat
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	cfg.DiscoveryPrefix = strings.TrimSuffix(cfg.DiscoveryPrefix, "/")
	return &Bridge{
		cfg:    cfg,
		client: client,
		tx:     tx,
		txSem:  semaphore.NewWeighted(1),
		ctx:    context.Background(),
	}
}

func (b *Bridge) stateTopic() string {
	return b.cfg.Prefix + "/state"
}

func (b *Bridge) availabilityTopic() string {
	return b.cfg.Prefix + "/availability"
}

func (b *Bridge) setTopic() string {
	return b.cfg.Prefix + "/set"
}

func (b *Bridge) commandTopic(command string) string {
	return b.setTopic() + "/" + command
}

func (b *Bridge) statusTopic() string {
	return b.cfg.DiscoveryPrefix + "/status"
}

// State returns the last known state and whether one is known
func (b *Bridge) State() (aircode.Controller, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.known
}

func (b *Bridge) runCtx() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Run connects to the broker and publishes every decoded frame from events
// until events closes or ctx ends
func (b *Bridge) Run(ctx context.Context, events <-chan link.Event) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	logging.Info("Connecting to MQTT broker",
		zap.String("broker", b.cfg.Broker),
		zap.String("client_id", b.cfg.ClientID),
	)
	token := b.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		b.client.Disconnect(0)
		return nil
	}
	defer b.Close()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.State != nil {
				b.Observe(*ev.State)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Close marks the device unavailable and disconnects
func (b *Bridge) Close() {
	token := b.client.Publish(b.availabilityTopic(), 1, true, payloadOffline)
	token.WaitTimeout(publishTimeout)
	b.client.Disconnect(disconnectQuiesce)
	logging.Info("Disconnected from MQTT broker")
}

// Observe records c as the current state and publishes it
func (b *Bridge) Observe(c aircode.Controller) {
	b.mu.Lock()
	b.state = c
	b.known = true
	b.mu.Unlock()
	b.publishState(c)
}

func (b *Bridge) publishState(c aircode.Controller) {
	data, err := json.Marshal(statefile.FromController(c))
	if err != nil {
		logging.Error("Failed to encode state", zap.Error(err))
		return
	}
	b.publish(b.stateTopic(), true, data)
}

func (b *Bridge) connected(c mqtt.Client) {
	logging.Info("Connected to MQTT broker")

	b.subscribe(b.setTopic(), b.commandHandler(""))
	for _, command := range []string{commandMode, commandFan, commandSwing, commandTemperature} {
		b.subscribe(b.commandTopic(command), b.commandHandler(command))
	}
	b.subscribe(b.statusTopic(), func(_ mqtt.Client, m mqtt.Message) {
		if string(m.Payload()) == payloadOnline {
			logging.Info("Home Assistant online, sending discovery config")
			go b.announce()
		}
	})

	b.announce()
}

func (b *Bridge) connectionLost(_ mqtt.Client, err error) {
	logging.Warn("Lost connection with MQTT broker", zap.Error(err))
}

// announce publishes discovery, availability and the last known state
func (b *Bridge) announce() {
	config, err := b.discoveryConfig()
	if err != nil {
		logging.Error("Discovery config failed", zap.Error(err))
		return
	}
	b.publish(b.discoveryTopic(), true, config)
	b.publish(b.availabilityTopic(), true, payloadOnline)
	if state, ok := b.State(); ok {
		b.publishState(state)
	}
}

func (b *Bridge) commandHandler(command string) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		payload := append([]byte(nil), m.Payload()...)
		go func() {
			if err := b.HandleCommand(b.runCtx(), command, payload); err != nil {
				logging.Warn("MQTT command failed",
					zap.String("topic", m.Topic()),
					zap.ByteString("payload", payload),
					zap.Error(err),
				)
			}
		}()
	}
}

// HandleCommand applies a command to the last known state and transmits
// the result. An empty command takes a partial JSON state document.
func (b *Bridge) HandleCommand(ctx context.Context, command string, payload []byte) error {
	doc, err := commandDocument(command, payload)
	if err != nil {
		return err
	}

	if err := b.txSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.txSem.Release(1)

	current, _ := b.State()
	next, err := statefile.Merge(current, doc, statefile.FormatJSON)
	if err != nil {
		return err
	}

	result, err := b.tx.TransmitState(ctx, next, b.cfg.Repeat)
	if err != nil {
		return fmt.Errorf("transmit failed: %w", err)
	}
	logging.Info("MQTT command transmitted",
		zap.String("command", command),
		zap.Uint64("codes", result.Codes),
		zap.Duration("duration", result.Duration),
	)

	// The unit does not report back, so the sent state becomes the state
	b.Observe(next)
	return nil
}

// commandDocument turns a command payload into a partial JSON document
func commandDocument(command string, payload []byte) ([]byte, error) {
	value := strings.TrimSpace(string(payload))

	var fragment map[string]interface{}
	switch command {
	case "":
		return payload, nil
	case commandMode:
		if strings.EqualFold(value, "off") {
			fragment = map[string]interface{}{"power": false}
		} else {
			fragment = map[string]interface{}{"power": true, "mode": value}
		}
	case commandFan:
		fragment = map[string]interface{}{"fan": value}
	case commandSwing:
		on, err := parseSwitch(value)
		if err != nil {
			return nil, err
		}
		fragment = map[string]interface{}{"swing": on}
	case commandTemperature:
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid temperature %q: %w", value, err)
		}
		fragment = map[string]interface{}{"temperature": int(math.Round(t))}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return json.Marshal(fragment)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid swing value %q", s)
}

func (b *Bridge) publish(topic string, retained bool, payload interface{}) {
	t := b.client.Publish(topic, 1, retained, payload)
	go func() {
		<-t.Done()
		if t.Error() != nil {
			logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(t.Error()))
		}
	}()
}

func (b *Bridge) subscribe(topic string, callback mqtt.MessageHandler) {
	t := b.client.Subscribe(topic, 1, callback)
	go func() {
		<-t.Done()
		if t.Error() != nil {
			logging.Warn("MQTT subscribe failed", zap.String("topic", topic), zap.Error(t.Error()))
		}
	}()
}
