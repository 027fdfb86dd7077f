// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/Thermoquad/mistral/internal/logging"
)

const (
	// ServiceType is the mDNS service type bridges advertise
	ServiceType = "_mistral._tcp"

	// APIServiceType is the mDNS service type of the HTTP API
	APIServiceType = "_mistral-api._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout is the default time spent collecting answers
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry advertises port 0
	DefaultPort = 80

	// DefaultPath is used when an entry has no path TXT record
	DefaultPath = "/ws"
)

// Scanner browses for bridges
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewScanner creates a scanner with the default timeout
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan collects every bridge that answers before the timeout or ctx ends
func (s *Scanner) Scan(ctx context.Context) ([]*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		bridges = make([]*Bridge, 0)
		seen    = make(map[string]bool)
	)
	go func() {
		for entry := range entries {
			b := parseServiceEntry(entry)
			if b == nil {
				continue
			}
			mu.Lock()
			if !seen[b.Name] {
				seen[b.Name] = true
				bridges = append(bridges, b)
				logging.Debug("Bridge discovered", zap.String("name", b.Name), zap.String("url", b.URL()))
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Bridge(nil), bridges...), nil
}

// Find waits for the bridge with the given instance name
func (s *Scanner) Find(ctx context.Context, name string) (*Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Bridge, 1)
	go func() {
		for entry := range entries {
			b := parseServiceEntry(entry)
			if b != nil && strings.EqualFold(b.Name, name) {
				select {
				case found <- b:
				default:
				}
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	select {
	case b := <-found:
		return b, nil
	default:
		return nil, fmt.Errorf("bridge %q not found within %s", name, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf entry to a Bridge.
// Returns nil for entries without a usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := parseText(entry.Text)
	b := &Bridge{
		Name:         entry.Instance,
		Host:         entry.HostName,
		IP:           ip,
		Port:         port,
		Path:         DefaultPath,
		TLS:          metadata["tls"] == "1",
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
	if path := metadata["path"]; path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		b.Path = path
	}
	if id := metadata["id"]; id != "" {
		if addr, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(id), "0x"), 16, 64); err == nil {
			b.Address = addr
		}
	}
	if b.Name == "" {
		b.Name = strings.TrimSuffix(entry.HostName, ".")
	}
	return b
}

// parseText splits "key=value" TXT entries. Keys without a value map to "".
func parseText(txt []string) map[string]string {
	metadata := make(map[string]string, len(txt))
	for _, t := range txt {
		parts := strings.SplitN(t, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}

// Announcement is a running mDNS advertisement
type Announcement struct {
	server *zeroconf.Server
}

// Announce advertises the HTTP API under instance on port until Shutdown
func Announce(instance string, port int, txt []string) (*Announcement, error) {
	server, err := zeroconf.Register(instance, APIServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("mDNS announcement started",
		zap.String("instance", instance),
		zap.String("service", APIServiceType),
		zap.Int("port", port),
	)
	return &Announcement{server: server}, nil
}

// Shutdown stops the advertisement
func (a *Announcement) Shutdown() {
	a.server.Shutdown()
}
