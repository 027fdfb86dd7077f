// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link runs a host session with an IR bridge over serial or
// WebSocket: it decodes link packets and captured frames, and matches
// bridge replies to host requests.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/mistral/internal/logging"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

// Session errors
var (
	ErrSessionClosed   = errors.New("link session closed")
	ErrTransmitBusy    = errors.New("bridge transmitter busy")
	ErrInvalidCommand  = errors.New("bridge rejected command")
	ErrInvalidResponse = errors.New("malformed bridge response")
)

// eventBuffer is the depth of the event channel
const eventBuffer = 64

// Event is one thing that happened on the link. Exactly one of Packet or
// Err is set for link level results; FRAME_CAPTURED packets also carry the
// frame and its decode result.
type Event struct {
	Time       time.Time
	Packet     *irlink.Packet
	Validation []irlink.ValidationError

	// Set for FRAME_CAPTURED
	Codes []aircode.Code
	State *aircode.Controller

	// Link decode error, or frame decode error for FRAME_CAPTURED
	Err error
}

// IsFrame reports whether the event carries a captured frame
func (e Event) IsFrame() bool {
	return e.Packet != nil && e.Packet.Type() == irlink.MsgFrameCaptured
}

// TransmitResult is the bridge's TRANSMIT_DONE report
type TransmitResult struct {
	Codes    uint64
	Duration time.Duration
}

// Bridge describes a bridge that answered discovery
type Bridge struct {
	Address     uint64
	CanReceive  bool
	CanTransmit bool
}

type waiter struct {
	match      func(*irlink.Packet) bool
	ch         chan *irlink.Packet
	persistent bool
}

// Session reads link packets from a connection and writes requests to it.
// Run must be running for requests to receive replies, and Events must be
// drained while it runs.
type Session struct {
	conn    Connection
	variant aircode.Variant
	address atomic.Uint64
	decoder *irlink.Decoder

	events chan Event
	done   chan struct{}

	writeMu sync.Mutex
	txMu    sync.Mutex

	mu      sync.Mutex
	waiters []*waiter
	stats   *irlink.Statistics
}

// Option configures a Session
type Option func(*Session)

// WithVariant selects the frame variant used to decode captured frames
func WithVariant(v aircode.Variant) Option {
	return func(s *Session) { s.variant = v }
}

// WithAddress selects the bridge address requests are sent to
func WithAddress(address uint64) Option {
	return func(s *Session) { s.address.Store(address) }
}

// NewSession creates a session over conn. The session owns conn.
func NewSession(conn Connection, opts ...Option) *Session {
	s := &Session{
		conn:    conn,
		variant: aircode.Structured,
		decoder: irlink.NewDecoder(),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		stats:   irlink.NewStatistics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the bridge address requests are sent to
func (s *Session) Address() uint64 {
	return s.address.Load()
}

// SetAddress retargets requests to another bridge
func (s *Session) SetAddress(address uint64) {
	s.address.Store(address)
}

// Variant returns the frame variant of the session
func (s *Session) Variant() aircode.Variant {
	return s.variant
}

// Events returns the event stream. It is closed when Run returns.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when Run returns
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close closes the underlying connection, which ends Run
func (s *Session) Close() error {
	return s.conn.Close()
}

// Statistics returns a snapshot of the session statistics
func (s *Session) Statistics() irlink.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := *s.stats
	snap.FrameErrors = make(map[string]uint64, len(s.stats.FrameErrors))
	for k, v := range s.stats.FrameErrors {
		snap.FrameErrors[k] = v
	}
	return snap
}

// ResetStatistics clears the session statistics
func (s *Session) ResetStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Reset()
}

// Run reads from the connection until it fails or ctx is cancelled.
// Cancelling ctx closes the connection. Returns nil on cancellation.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.events)
	defer close(s.done)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, 256)
	for {
		n, err := s.conn.Read(buf)
		for _, b := range buf[:n] {
			packet, decodeErr := s.decoder.DecodeByte(b)
			if decodeErr != nil {
				s.handleDecodeError(ctx, decodeErr)
				continue
			}
			if packet != nil {
				s.handlePacket(ctx, packet)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("link read failed: %w", err)
		}
	}
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) handleDecodeError(ctx context.Context, err error) {
	logging.LogRawBytes("Link decode error", s.decoder.GetRawBytes())
	logging.Debug("Link decode error", zap.Error(err))

	s.mu.Lock()
	s.stats.Update(nil, err, nil)
	s.mu.Unlock()

	s.emit(ctx, Event{Time: time.Now(), Err: err})
}

func (s *Session) handlePacket(ctx context.Context, p *irlink.Packet) {
	ev := Event{
		Time:       p.Timestamp(),
		Packet:     p,
		Validation: irlink.ValidatePacket(p),
	}

	var frameErr error
	isFrame := p.Type() == irlink.MsgFrameCaptured && len(ev.Validation) == 0
	if isFrame {
		ev.Codes, frameErr = p.Codes()
		if frameErr == nil {
			var state aircode.Controller
			state, frameErr = s.variant.Decode(ev.Codes)
			if frameErr == nil {
				ev.State = &state
			}
		}
		ev.Err = frameErr
		logging.LogFrame(s.variant.Name(), ev.Codes, frameErr)
	}

	s.mu.Lock()
	s.stats.Update(p, nil, ev.Validation)
	if isFrame {
		s.stats.RecordFrame(frameErr)
	}
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if !w.match(p) {
			kept = append(kept, w)
			continue
		}
		select {
		case w.ch <- p:
		default:
		}
		if w.persistent {
			kept = append(kept, w)
		}
	}
	s.waiters = kept
	s.mu.Unlock()

	logging.Debug("Link packet",
		zap.String("type", irlink.FormatMessageType(p.Type())),
		zap.Uint64("address", p.Address()),
		zap.Int("anomalies", len(ev.Validation)),
	)
	s.emit(ctx, ev)
}

func (s *Session) addWaiter(w *waiter) {
	s.mu.Lock()
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()
}

func (s *Session) removeWaiter(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.waiters {
		if other == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// Send encodes and writes a packet
func (s *Session) Send(p *irlink.Packet) error {
	data, err := irlink.NewEncoder().Encode(p)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("link write failed: %w", err)
	}
	logging.Debug("Link packet sent",
		zap.String("type", irlink.FormatMessageType(p.Type())),
		zap.Uint64("address", p.Address()),
	)
	return nil
}

// Request sends p and waits for the first packet accepted by match
func (s *Session) Request(ctx context.Context, p *irlink.Packet, match func(*irlink.Packet) bool) (*irlink.Packet, error) {
	w := &waiter{match: match, ch: make(chan *irlink.Packet, 1)}
	s.addWaiter(w)
	defer s.removeWaiter(w)

	if err := s.Send(p); err != nil {
		return nil, err
	}

	select {
	case reply := <-w.ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionClosed
	}
}

func (s *Session) fromBridge(p *irlink.Packet) bool {
	address := s.address.Load()
	return address == irlink.AddressBroadcast || p.Address() == address
}

// Transmit asks the bridge to send codes repeat times and waits for it to
// finish
func (s *Session) Transmit(ctx context.Context, codes []aircode.Code, repeat uint8) (TransmitResult, error) {
	if repeat < 1 || repeat > irlink.MaxRepeat {
		return TransmitResult{}, fmt.Errorf("repeat %d out of range (1-%d)", repeat, irlink.MaxRepeat)
	}

	// One transmission at a time so replies cannot cross
	s.txMu.Lock()
	defer s.txMu.Unlock()

	reply, err := s.Request(ctx, irlink.NewTransmitFrame(s.address.Load(), codes, repeat), func(p *irlink.Packet) bool {
		switch p.Type() {
		case irlink.MsgTransmitDone, irlink.MsgErrorTransmitBusy, irlink.MsgErrorInvalidCmd:
			return s.fromBridge(p)
		}
		return false
	})
	if err != nil {
		return TransmitResult{}, err
	}

	switch reply.Type() {
	case irlink.MsgErrorTransmitBusy:
		return TransmitResult{}, ErrTransmitBusy
	case irlink.MsgErrorInvalidCmd:
		code, _ := irlink.GetMapInt(reply.PayloadMap(), 0)
		return TransmitResult{}, fmt.Errorf("%w: error code %d", ErrInvalidCommand, code)
	}

	count, okCount := irlink.GetMapUint(reply.PayloadMap(), 0)
	ms, okMs := irlink.GetMapUint(reply.PayloadMap(), 1)
	if !okCount || !okMs {
		return TransmitResult{}, fmt.Errorf("%w: TRANSMIT_DONE missing fields", ErrInvalidResponse)
	}
	return TransmitResult{Codes: count, Duration: time.Duration(ms) * time.Millisecond}, nil
}

// TransmitState encodes c with the session variant and transmits it
func (s *Session) TransmitState(ctx context.Context, c aircode.Controller, repeat uint8) (TransmitResult, error) {
	return s.Transmit(ctx, s.variant.Encode(c), repeat)
}

// Ping sends PING_REQUEST and returns the bridge uptime and round trip time
func (s *Session) Ping(ctx context.Context) (uptime time.Duration, rtt time.Duration, err error) {
	start := time.Now()
	reply, err := s.Request(ctx, irlink.NewPingRequest(s.address.Load()), func(p *irlink.Packet) bool {
		return p.Type() == irlink.MsgPingResponse && s.fromBridge(p)
	})
	if err != nil {
		return 0, 0, err
	}
	rtt = time.Since(start)
	ms, ok := irlink.GetMapUint(reply.PayloadMap(), 0)
	if !ok {
		return 0, rtt, fmt.Errorf("%w: PING_RESPONSE missing uptime", ErrInvalidResponse)
	}
	return time.Duration(ms) * time.Millisecond, rtt, nil
}

// Discover broadcasts DISCOVERY_REQUEST and collects announcements until
// the end-of-discovery marker arrives or ctx ends. Bridges found before
// ctx ends are returned with ctx's error.
func (s *Session) Discover(ctx context.Context) ([]Bridge, error) {
	w := &waiter{
		match: func(p *irlink.Packet) bool {
			return p.Type() == irlink.MsgDeviceAnnounce
		},
		ch:         make(chan *irlink.Packet, eventBuffer),
		persistent: true,
	}
	s.addWaiter(w)
	defer s.removeWaiter(w)

	if err := s.Send(irlink.NewDiscoveryRequest(irlink.AddressBroadcast)); err != nil {
		return nil, err
	}

	var bridges []Bridge
	seen := make(map[uint64]bool)
	for {
		select {
		case p := <-w.ch:
			if p.IsStateless() {
				return bridges, nil
			}
			if seen[p.Address()] {
				continue
			}
			seen[p.Address()] = true
			rx, _ := irlink.GetMapBool(p.PayloadMap(), 0)
			tx, _ := irlink.GetMapBool(p.PayloadMap(), 1)
			bridges = append(bridges, Bridge{Address: p.Address(), CanReceive: rx, CanTransmit: tx})
		case <-ctx.Done():
			return bridges, ctx.Err()
		case <-s.done:
			return bridges, ErrSessionClosed
		}
	}
}

// ConfigureCapture enables or disables frame capture for the session variant
func (s *Session) ConfigureCapture(enabled bool) error {
	return s.Send(irlink.NewCaptureConfig(s.address.Load(), enabled, s.variant.Name()))
}
