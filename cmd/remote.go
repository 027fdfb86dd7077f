// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/mistral/internal/link"
)

var (
	remoteState  stateFlags
	remoteRepeat int
)

var remoteCmd = &cobra.Command{
	Use:   "remote [state-file]",
	Short: "Interactive TUI remote control for the air conditioner",
	Long: `Control the air conditioner through the IR bridge with a terminal UI.

This command provides a remote control that edits a state and transmits it
through a bridge connected via WebSocket or serial.

Features:
  - Bridge discovery (DEVICE_ANNOUNCE)
  - State editing with immediate or manual transmission
  - Frames from the stock remote update the displayed state
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Keys:
  space     power on/off         m / M   next / previous mode
  + / -     temperature          f       fan speed
  s         swing                v / h   vertical / horizontal swing
  t         timer hours          a       toggle auto-send
  enter     send the state       tab     switch between bridges and remote
  q         quit

The starting state comes from a state file, a preset or the default state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemote,
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteState.register(remoteCmd)
	remoteCmd.Flags().IntVar(&remoteRepeat, "repeat", 1, "Number of times the bridge sends each frame")
}

// connectionManager handles session lifecycle and reconnection
type connectionManager struct {
	session  *link.Session
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
}

func (cm *connectionManager) getSession() *link.Session {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.session
}

func (cm *connectionManager) setSession(session *link.Session, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.session = session
	cm.connInfo = connInfo
}

func runRemote(cmd *cobra.Command, args []string) error {
	initial, err := remoteState.load(args)
	if err != nil {
		return err
	}
	repeat, err := checkRepeat(remoteRepeat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Open initial session (serial or WebSocket)
	session, connInfo, err := openSession(ctx)
	if err != nil {
		return err
	}

	cm := &connectionManager{
		session:  session,
		connInfo: connInfo,
	}

	m := initialRemoteModel(cm, connInfo, initial, repeat)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.sessionLoop(ctx)

	if _, err := p.Run(); err != nil {
		cancel()
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// sessionLoop runs the current session and reconnects when it fails
func (cm *connectionManager) sessionLoop(ctx context.Context) {
	for {
		session := cm.getSession()
		result := startSession(ctx, session)

		go cm.discover(ctx, session)
		if err := session.ConfigureCapture(true); err != nil {
			cm.p.Send(logMsg{message: fmt.Sprintf("Failed to enable capture: %v", err), isError: true})
		}

		cm.forwardEvents(ctx, session)
		<-result

		if ctx.Err() != nil {
			return
		}

		// Notify TUI about connection loss
		cm.p.Send(connectionLostMsg{})

		if !cm.reconnect(ctx) {
			return // Shutdown requested during reconnect
		}
	}
}

// forwardEvents sends session events to the TUI in batches until the
// session ends
func (cm *connectionManager) forwardEvents(ctx context.Context, session *link.Session) {
	batchChan := make(chan link.Event, 100)
	readerDone := make(chan struct{})

	// Reader goroutine - drains session events into the batch channel
	go func() {
		defer close(readerDone)
		for ev := range session.Events() {
			select {
			case batchChan <- ev:
			default:
			}
		}
	}()

	// Batch sender - sends batched updates to TUI at fixed rate
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		var batch remoteBatchMsg
	drainLoop:
		for {
			select {
			case ev := <-batchChan:
				batch.events = append(batch.events, ev)
			default:
				break drainLoop
			}
		}
		if len(batch.events) > 0 {
			cm.p.Send(batch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			<-readerDone
			return
		case <-readerDone:
			flush()
			return
		case <-ticker.C:
			flush()
		}
	}
}

// discover asks the session for bridges and reports them to the TUI
func (cm *connectionManager) discover(ctx context.Context, session *link.Session) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(discoveryTimeoutSeconds)*time.Second)
	defer cancel()
	bridges, _ := session.Discover(ctx)
	cm.p.Send(discoveryCompleteMsg{bridges: bridges})
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect(ctx context.Context) bool {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		previous := cm.getSession()
		session, connInfo, err := openSession(ctx)
		if err == nil {
			// Keep the bridge chosen before the connection dropped
			session.SetAddress(previous.Address())
			cm.setSession(session, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
