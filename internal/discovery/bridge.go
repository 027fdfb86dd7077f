// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge is a bridge found on the network
type Bridge struct {
	// Name is the mDNS instance name (e.g., "livingroom")
	Name string

	// Host is the advertised hostname (e.g., "mistral-a1b2.local.")
	Host string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the WebSocket port
	Port int

	// Path is the WebSocket path
	Path string

	// TLS is set when the bridge serves wss://
	TLS bool

	// Address is the bridge link address, zero when not advertised
	Address uint64

	// Metadata holds every TXT record entry
	Metadata map[string]string

	DiscoveredAt time.Time
}

// URL returns the WebSocket URL of the bridge
func (b *Bridge) URL() string {
	scheme := "ws"
	if b.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)), b.Path)
}

func (b *Bridge) String() string {
	if b.Address != 0 {
		return fmt.Sprintf("%s (0x%016X) at %s", b.Name, b.Address, b.URL())
	}
	return fmt.Sprintf("%s at %s", b.Name, b.URL())
}
