// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hass

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

var stripNonAlphanumeric = regexp.MustCompile("[^a-zA-Z0-9]+")

// Home Assistant climate values
var (
	haModes      = []string{"off", "auto", "cool", "dry", "fan_only", "heat"}
	haFanModes   = []string{"auto", "low", "medium", "high"}
	haSwingModes = []string{"off", "on"}
)

// Templates translate the published state document into Home Assistant
// climate values
const (
	modeStateTemplate = "{% if not value_json.power %}off{% else %}" +
		"{{ {'cold': 'cool', 'hot': 'heat', 'wind': 'fan_only'}.get(value_json.mode, value_json.mode) }}{% endif %}"
	fanStateTemplate   = "{{ {'level1': 'low', 'level2': 'medium', 'level3': 'high'}.get(value_json.fan, value_json.fan) }}"
	tempStateTemplate  = "{{ value_json.temperature }}"
	swingStateTemplate = "{{ 'on' if value_json.swing else 'off' }}"
)

// objectID returns the discovery object id for the device
func (b *Bridge) objectID() string {
	return stripNonAlphanumeric.ReplaceAllString(b.cfg.DeviceID, "_")
}

// discoveryTopic is where the climate config is published
func (b *Bridge) discoveryTopic() string {
	return fmt.Sprintf("%s/climate/%s/config", b.cfg.DiscoveryPrefix, b.objectID())
}

// discoveryConfig builds the Home Assistant MQTT climate config
func (b *Bridge) discoveryConfig() ([]byte, error) {
	id := b.objectID()
	config := map[string]interface{}{
		"name":      nil,
		"unique_id": id,
		"device": map[string]interface{}{
			"identifiers":  []string{id},
			"name":         b.cfg.DeviceName,
			"manufacturer": "Thermoquad",
			"model":        "mistral IR bridge",
		},
		"availability_topic":    b.availabilityTopic(),
		"payload_available":     payloadOnline,
		"payload_not_available": payloadOffline,

		"modes":                     haModes,
		"mode_command_topic":        b.commandTopic(commandMode),
		"mode_state_topic":          b.stateTopic(),
		"mode_state_template":       modeStateTemplate,
		"fan_modes":                 haFanModes,
		"fan_mode_command_topic":    b.commandTopic(commandFan),
		"fan_mode_state_topic":      b.stateTopic(),
		"fan_mode_state_template":   fanStateTemplate,
		"swing_modes":               haSwingModes,
		"swing_mode_command_topic":  b.commandTopic(commandSwing),
		"swing_mode_state_topic":    b.stateTopic(),
		"swing_mode_state_template": swingStateTemplate,

		"temperature_command_topic":  b.commandTopic(commandTemperature),
		"temperature_state_topic":    b.stateTopic(),
		"temperature_state_template": tempStateTemplate,
		"temperature_unit":           "C",
		"min_temp":                   aircode.TemperatureMin,
		"max_temp":                   aircode.TemperatureMax,
		"temp_step":                  1,
		"precision":                  1.0,
		"optimistic":                 true,
	}

	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build discovery config: %w", err)
	}
	return data, nil
}
