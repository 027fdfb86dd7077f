// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hass

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/internal/statefile"
	"github.com/Thermoquad/mistral/pkg/aircode"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type published struct {
	topic    string
	retained bool
	payload  string
}

// fakeClient records publishes and routes deliveries to subscribers
type fakeClient struct {
	mu           sync.Mutex
	onConnect    func(mqtt.Client)
	connectErr   error
	disconnected bool
	published    []published
	subs         map[string]mqtt.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{subs: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }

func (c *fakeClient) Connect() mqtt.Token {
	if c.connectErr == nil && c.onConnect != nil {
		c.onConnect(c)
	}
	return newToken(c.connectErr)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	var s string
	switch p := payload.(type) {
	case string:
		s = p
	case []byte:
		s = string(p)
	}
	c.mu.Lock()
	c.published = append(c.published, published{topic: topic, retained: retained, payload: s})
	c.mu.Unlock()
	return newToken(nil)
}

func (c *fakeClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.subs[topic] = callback
	c.mu.Unlock()
	return newToken(nil)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		c.Subscribe(topic, 1, callback)
	}
	return newToken(nil)
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	return newToken(nil)
}

func (c *fakeClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.Subscribe(topic, 1, callback)
}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

func (c *fakeClient) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	c.mu.Lock()
	handler, ok := c.subs[topic]
	c.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", topic)
	}
	handler(c, &fakeMessage{topic: topic, payload: []byte(payload)})
}

// last returns the newest publish on topic
func (c *fakeClient) last(topic string) (published, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.published) - 1; i >= 0; i-- {
		if c.published[i].topic == topic {
			return c.published[i], true
		}
	}
	return published{}, false
}

func (c *fakeClient) count(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.published {
		if p.topic == topic {
			n++
		}
	}
	return n
}

type fakeTransmitter struct {
	mu   sync.Mutex
	sent []aircode.Controller
	err  error
}

func (f *fakeTransmitter) TransmitState(_ context.Context, c aircode.Controller, repeat uint8) (link.TransmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return link.TransmitResult{}, f.err
	}
	f.sent = append(f.sent, c)
	return link.TransmitResult{Codes: uint64(aircode.FrameLength) * uint64(repeat)}, nil
}

func (f *fakeTransmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var testConfig = Config{
	Prefix:          "mistral/",
	DiscoveryPrefix: "homeassistant",
	DeviceID:        "living-room ac",
	DeviceName:      "Living Room",
}

func newTestBridge(t *testing.T) (*Bridge, *fakeClient, *fakeTransmitter) {
	t.Helper()
	client := newFakeClient()
	tx := &fakeTransmitter{}
	b := newBridge(testConfig, client, tx)
	client.onConnect = b.connected
	return b, client, tx
}

// waitFor polls cond until it holds
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decodeState(t *testing.T, payload string) statefile.Document {
	t.Helper()
	var d statefile.Document
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		t.Fatalf("state is not JSON: %v", err)
	}
	return d
}

func TestBridge_Topics(t *testing.T) {
	b, _, _ := newTestBridge(t)
	tests := []struct {
		got, want string
	}{
		{b.stateTopic(), "mistral/state"},
		{b.availabilityTopic(), "mistral/availability"},
		{b.setTopic(), "mistral/set"},
		{b.commandTopic(commandFan), "mistral/set/fan"},
		{b.statusTopic(), "homeassistant/status"},
		{b.discoveryTopic(), "homeassistant/climate/living_room_ac/config"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestBridge_DiscoveryConfig(t *testing.T) {
	b, _, _ := newTestBridge(t)
	data, err := b.discoveryConfig()
	if err != nil {
		t.Fatalf("discoveryConfig failed: %v", err)
	}

	var config map[string]interface{}
	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatalf("config is not JSON: %v", err)
	}
	if config["unique_id"] != "living_room_ac" {
		t.Errorf("unique_id = %v", config["unique_id"])
	}
	if config["min_temp"] != float64(16) || config["max_temp"] != float64(30) {
		t.Errorf("temperature range = %v-%v", config["min_temp"], config["max_temp"])
	}
	if config["mode_command_topic"] != "mistral/set/mode" {
		t.Errorf("mode_command_topic = %v", config["mode_command_topic"])
	}
	modes, _ := config["modes"].([]interface{})
	if len(modes) != len(haModes) {
		t.Errorf("modes = %v", modes)
	}
	device, _ := config["device"].(map[string]interface{})
	if device["name"] != "Living Room" {
		t.Errorf("device = %v", device)
	}
}

func TestBridge_RunPublishesFrames(t *testing.T) {
	b, client, _ := newTestBridge(t)

	events := make(chan link.Event, 2)
	state := aircode.Controller{Mode: aircode.ModeCold, On: true, Fan: aircode.FanLevel3, Temperature: aircode.MustTemperature(21)}
	events <- link.Event{Err: aircode.ErrChecksum}
	events <- link.Event{State: &state}
	close(events)

	if err := b.Run(context.Background(), events); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, ok := client.last("homeassistant/climate/living_room_ac/config"); !ok {
		t.Error("discovery config not published")
	}
	p, ok := client.last("mistral/state")
	if !ok {
		t.Fatal("state not published")
	}
	if !p.retained {
		t.Error("state should be retained")
	}
	d := decodeState(t, p.payload)
	if !d.Power || d.Mode != "cold" || d.Temperature != 21 || d.Fan != "level3" {
		t.Errorf("state = %+v", d)
	}

	avail, _ := client.last("mistral/availability")
	if avail.payload != payloadOffline {
		t.Errorf("availability after Run = %q", avail.payload)
	}
	if !client.disconnected {
		t.Error("client not disconnected")
	}
	if got, ok := b.State(); !ok || got != state {
		t.Errorf("State() = %+v, %v", got, ok)
	}
}

func TestBridge_RunConnectError(t *testing.T) {
	b, client, _ := newTestBridge(t)
	client.connectErr = errors.New("refused")
	err := b.Run(context.Background(), make(chan link.Event))
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("expected connect error, got %v", err)
	}
}

func TestBridge_Commands(t *testing.T) {
	base := aircode.Controller{Mode: aircode.ModeHot, On: true, Fan: aircode.FanAuto, Temperature: aircode.MustTemperature(22)}

	tests := []struct {
		name    string
		command string
		payload string
		check   func(c aircode.Controller) bool
	}{
		{"mode cool", commandMode, "cool", func(c aircode.Controller) bool { return c.On && c.Mode == aircode.ModeCold }},
		{"mode off", commandMode, "off", func(c aircode.Controller) bool { return !c.On && c.Mode == aircode.ModeHot }},
		{"fan high", commandFan, "high", func(c aircode.Controller) bool { return c.Fan == aircode.FanLevel3 }},
		{"swing on", commandSwing, "on", func(c aircode.Controller) bool { return c.Swing }},
		{"temperature float", commandTemperature, "25.0", func(c aircode.Controller) bool { return c.Temperature.Celsius() == 25 }},
		{"document", "", `{"sleep": true, "temperature": 18}`, func(c aircode.Controller) bool {
			return c.Sleep && c.Temperature.Celsius() == 18 && c.Mode == aircode.ModeHot
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client, tx := newTestBridge(t)
			b.Observe(base)

			if err := b.HandleCommand(context.Background(), tt.command, []byte(tt.payload)); err != nil {
				t.Fatalf("HandleCommand failed: %v", err)
			}
			if tx.count() != 1 {
				t.Fatalf("transmitted %d states", tx.count())
			}
			if !tt.check(tx.sent[0]) {
				t.Errorf("transmitted %+v", tx.sent[0])
			}
			if got, _ := b.State(); got != tx.sent[0] {
				t.Error("state should follow the transmitted command")
			}
			if client.count("mistral/state") != 2 {
				t.Errorf("state published %d times", client.count("mistral/state"))
			}
		})
	}
}

func TestBridge_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		payload string
	}{
		{"unknown command", "power", "on"},
		{"bad mode", commandMode, "turbo"},
		{"bad fan", commandFan, "max"},
		{"bad swing", commandSwing, "sideways"},
		{"bad temperature", commandTemperature, "warm"},
		{"temperature out of range", commandTemperature, "35"},
		{"bad document", "", `{"mode":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, tx := newTestBridge(t)
			if err := b.HandleCommand(context.Background(), tt.command, []byte(tt.payload)); err == nil {
				t.Error("expected error")
			}
			if tx.count() != 0 {
				t.Error("nothing should be transmitted")
			}
		})
	}
}

func TestBridge_TransmitFailureKeepsState(t *testing.T) {
	b, _, tx := newTestBridge(t)
	tx.err = link.ErrTransmitBusy

	err := b.HandleCommand(context.Background(), commandMode, []byte("heat"))
	if !errors.Is(err, link.ErrTransmitBusy) {
		t.Errorf("expected ErrTransmitBusy, got %v", err)
	}
	if _, known := b.State(); known {
		t.Error("state should stay unknown after a failed transmit")
	}
}

func TestBridge_SubscribedCommandTransmits(t *testing.T) {
	b, client, tx := newTestBridge(t)
	b.connected(client)

	client.deliver(t, "mistral/set/temperature", "27")
	waitFor(t, func() bool { return tx.count() == 1 })

	if got, _ := b.State(); got.Temperature.Celsius() != 27 {
		t.Errorf("temperature = %d", got.Temperature.Celsius())
	}
}

func TestBridge_HomeAssistantRestartRepublishes(t *testing.T) {
	b, client, _ := newTestBridge(t)
	b.connected(client)
	before := client.count("homeassistant/climate/living_room_ac/config")

	client.deliver(t, "homeassistant/status", "offline")
	client.deliver(t, "homeassistant/status", "online")
	waitFor(t, func() bool {
		return client.count("homeassistant/climate/living_room_ac/config") == before+1
	})

	avail, _ := client.last("mistral/availability")
	if avail.payload != payloadOnline {
		t.Errorf("availability = %q", avail.payload)
	}
}

func TestNew_ClientID(t *testing.T) {
	b := New(Config{Broker: "tcp://localhost:1883", Prefix: "ac"}, &fakeTransmitter{})
	if !strings.HasPrefix(b.cfg.ClientID, "mistral-") || len(b.cfg.ClientID) <= len("mistral-") {
		t.Errorf("ClientID = %q", b.cfg.ClientID)
	}
	if b.cfg.Repeat != DefaultRepeat {
		t.Errorf("Repeat = %d", b.cfg.Repeat)
	}
	if b.client == nil {
		t.Error("client not created")
	}
}
