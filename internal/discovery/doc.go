// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package discovery finds WebSocket IR bridges on the local network with
// multicast DNS.
//
// Bridges advertise the "_mistral._tcp" service. The TXT record may carry
// "path=" (WebSocket path, default "/ws"), "id=" (bridge address in hex)
// and "tls=1" when the bridge serves wss://.
//
// # Usage Example
//
//	bridges, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, b := range bridges {
//	    fmt.Println(b.Name, b.URL())
//	}
//
// # Network Requirements
//
// Multicast must be allowed on the interface and UDP port 5353 must not be
// firewalled.
package discovery
