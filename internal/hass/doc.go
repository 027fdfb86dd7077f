// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hass exposes the air conditioner to Home Assistant over MQTT.
//
// Frames captured from the physical remote are published as a JSON state
// document on <prefix>/state. Commands arrive on <prefix>/set (a partial
// JSON state document) and on <prefix>/set/{mode,fan,swing,temperature}
// (plain Home Assistant climate values); each is merged into the last known
// state, encoded with the session variant and transmitted.
//
// The bridge publishes an MQTT climate discovery config under the discovery
// prefix and keeps <prefix>/availability up to date, with a last will of
// "offline".
package hass
