// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	discoveryTimeoutSeconds = 3 // Discovery gives up after N seconds without the end marker
	pingIntervalSeconds     = 5 // Send ping requests every N seconds
	transmitTimeout         = 5 * time.Second
)

// Focus states
const (
	focusBridgeList = iota
	focusRemote
	focusTimerInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// bridgeItem is a discovered bridge in the bridge list
type bridgeItem struct {
	link.Bridge
}

// Implement list.Item interface
func (b bridgeItem) Title() string { return fmt.Sprintf("Bridge %016X", b.Address) }
func (b bridgeItem) Description() string {
	return fmt.Sprintf("rx=%s tx=%s", yesNo(b.CanReceive), yesNo(b.CanTransmit))
}
func (b bridgeItem) FilterValue() string { return fmt.Sprintf("%X", b.Address) }

// remoteModel is the Bubble Tea model for the remote TUI
type remoteModel struct {
	// Connection manager (for sending commands and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Bridge tracking
	bridges       []link.Bridge
	bridgeList    list.Model
	discoveryDone bool
	target        uint64

	// Remote state
	state    aircode.Controller
	pending  bool // state changed since the last transmission
	autoSend bool
	sending  bool
	repeat   uint8
	lastSent *time.Time

	// Monitoring (reused from monitor_tui.go patterns)
	stats         irlink.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// Control
	timerInput   textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	quitting       bool
	connectionLost bool

	// Ping state
	lastPingTime time.Time
	bridgeUptime uint64
	lastRTT      time.Duration
	hasUptime    bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type remoteTickMsg time.Time

type remoteBatchMsg struct {
	events []link.Event
}

type discoveryCompleteMsg struct {
	bridges []link.Bridge
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

type logMsg struct {
	message string
	isError bool
}

type transmitResultMsg struct {
	state  aircode.Controller
	result link.TransmitResult
	err    error
}

type pingResultMsg struct {
	uptime time.Duration
	rtt    time.Duration
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialRemoteModel(connMgr *connectionManager, connInfo string, initial aircode.Controller, repeat uint8) remoteModel {
	// Initialize text input for the timer
	ti := textinput.New()
	ti.Placeholder = "1.5"
	ti.CharLimit = 4
	ti.Width = 6

	// Initialize bridge list with empty items
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	bridgeList := list.New([]list.Item{}, delegate, 30, 10)
	bridgeList.Title = "Bridges"
	bridgeList.SetShowStatusBar(false)
	bridgeList.SetShowHelp(false)
	bridgeList.SetFilteringEnabled(false)

	return remoteModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		bridgeList:    bridgeList,
		target:        cfg.Connection.Address,
		state:         initial,
		pending:       true,
		repeat:        repeat,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		timerInput:    ti,
		focusedField:  focusRemote,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m remoteModel) Init() tea.Cmd {
	return remoteTickCmd()
}

func remoteTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return remoteTickMsg(t)
	})
}

func (m remoteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bridgeList.SetHeight(max(m.height/3, 6))

	case remoteTickMsg:
		if session := m.session(); session != nil {
			m.stats = session.Statistics()
			m.stats.CalculateRates()
		}
		cmds = append(cmds, remoteTickCmd())
		// Ping the bridge periodically (after discovery)
		if m.discoveryDone && !m.connectionLost && time.Since(m.lastPingTime) >= time.Duration(pingIntervalSeconds)*time.Second {
			m.lastPingTime = time.Now()
			cmds = append(cmds, m.pingCmd())
		}

	case remoteBatchMsg:
		for _, ev := range msg.events {
			m.processEvent(ev)
		}

	case discoveryCompleteMsg:
		m.finishDiscovery(msg.bridges)

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.discoveryDone = false
		m.addLogEntry("Reconnected - starting discovery", false)

	case logMsg:
		m.addLogEntry(msg.message, msg.isError)

	case transmitResultMsg:
		m.sending = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Transmit failed: %v", msg.err), true)
			break
		}
		now := time.Now()
		m.lastSent = &now
		if msg.state == m.state {
			m.pending = false
		}
		m.addLogEntry(fmt.Sprintf("Sent %s (%d codes, %v)",
			aircode.FormatController(msg.state), msg.result.Codes, msg.result.Duration), false)

	case pingResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Ping failed: %v", msg.err), true)
			break
		}
		m.bridgeUptime = uint64(msg.uptime.Milliseconds())
		m.lastRTT = msg.rtt
		m.hasUptime = true
	}

	// Update child components
	if m.focusedField == focusBridgeList {
		var cmd tea.Cmd
		m.bridgeList, cmd = m.bridgeList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m remoteModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.focusedField == focusTimerInput {
		return m.handleTimerKey(msg)
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.focusedField == focusBridgeList {
			m.focusedField = focusRemote
		} else if len(m.bridges) > 0 {
			m.focusedField = focusBridgeList
		}
		return m, nil
	}

	if m.focusedField == focusBridgeList {
		if key == "enter" {
			m.selectBridge()
			return m, nil
		}
		var cmd tea.Cmd
		m.bridgeList, cmd = m.bridgeList.Update(msg)
		return m, cmd
	}

	return m.handleRemoteKey(key)
}

// handleRemoteKey edits the state like the buttons of a remote
func (m remoteModel) handleRemoteKey(key string) (tea.Model, tea.Cmd) {
	s := m.state
	switch key {
	case " ", "p":
		s.On = !s.On
	case "m":
		s.Mode = (s.Mode + 1) % (aircode.ModeHot + 1)
	case "M":
		s.Mode = (s.Mode + aircode.ModeHot) % (aircode.ModeHot + 1)
	case "f":
		s.Fan = (s.Fan + 1) % (aircode.FanLevel3 + 1)
	case "+", "=", "up":
		if t, ok := aircode.NewTemperature(s.Temperature.Celsius() + 1); ok {
			s.Temperature = t
		}
	case "-", "down":
		if t, ok := aircode.NewTemperature(s.Temperature.Celsius() - 1); ok {
			s.Temperature = t
		}
	case "s":
		s.Swing = !s.Swing
	case "v":
		s.VSwing = nextSwing(s.VSwing)
	case "h":
		s.HSwing = nextSwing(s.HSwing)
	case "z":
		s.Sleep = !s.Sleep
	case "x":
		s.Strong = !s.Strong
	case "l":
		s.Light = !s.Light
	case "e":
		s.Econo = !s.Econo
	case "d":
		s.TemperatureDisplay = (s.TemperatureDisplay + 1) % (aircode.DisplayOutdoor + 1)
	case "t":
		m.focusedField = focusTimerInput
		m.timerInput.SetValue("")
		m.timerInput.Focus()
		return m, textinput.Blink
	case "a":
		m.autoSend = !m.autoSend
		if m.autoSend && m.pending {
			return m.send()
		}
		return m, nil
	case "enter":
		return m.send()
	default:
		return m, nil
	}

	if s == m.state {
		return m, nil
	}
	m.state = s
	m.pending = true
	if m.autoSend {
		return m.send()
	}
	return m, nil
}

// handleTimerKey edits the timer hours. Zero disables the timer.
func (m remoteModel) handleTimerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focusedField = focusRemote
		m.timerInput.Blur()
		return m, nil

	case "enter":
		m.focusedField = focusRemote
		m.timerInput.Blur()
		timer, err := parseTimerHours(m.timerInput.Value())
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		if timer == m.state.Timer {
			return m, nil
		}
		m.state.Timer = timer
		m.pending = true
		if m.autoSend {
			return m.send()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.timerInput, cmd = m.timerInput.Update(msg)
	return m, cmd
}

// parseTimerHours turns an hours value in half hour steps into a timer
func parseTimerHours(value string) (aircode.TimerSetting, error) {
	hours, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return aircode.TimerSetting{}, fmt.Errorf("invalid timer %q", value)
	}
	halves := hours * 2
	if halves != math.Trunc(halves) {
		return aircode.TimerSetting{}, fmt.Errorf("timer must be in half hour steps")
	}
	if halves == 0 {
		return aircode.TimerSetting{}, nil
	}
	timer, ok := aircode.NewTimer(int(halves))
	if !ok {
		return aircode.TimerSetting{}, fmt.Errorf("timer must be between 0.5 and %gh", float64(aircode.MaxTimerHalfHours)/2)
	}
	return timer, nil
}

// nextSwing cycles the documented swing modes
func nextSwing(s aircode.SwingMode) aircode.SwingMode {
	if s == aircode.SwingOff {
		return aircode.SwingOn
	}
	return aircode.SwingOff
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m remoteModel) session() *link.Session {
	if m.connMgr == nil {
		return nil
	}
	return m.connMgr.getSession()
}

// send transmits the current state unless a transmission is running
func (m remoteModel) send() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send: connection lost", true)
		return m, nil
	}
	if m.sending {
		return m, nil
	}
	session := m.session()
	if session == nil {
		return m, nil
	}

	m.sending = true
	state, repeat := m.state, m.repeat
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), transmitTimeout)
		defer cancel()
		result, err := session.TransmitState(ctx, state, repeat)
		return transmitResultMsg{state: state, result: result, err: err}
	}
}

func (m remoteModel) pingCmd() tea.Cmd {
	session := m.session()
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), transmitTimeout)
		defer cancel()
		uptime, rtt, err := session.Ping(ctx)
		return pingResultMsg{uptime: uptime, rtt: rtt, err: err}
	}
}

//////////////////////////////////////////////////////////////
// Event Processing
//////////////////////////////////////////////////////////////

// processEvent logs link trouble and follows frames from the stock remote
func (m *remoteModel) processEvent(ev link.Event) {
	switch {
	case ev.Packet == nil:
		if ev.Err != nil {
			m.addLogEntry(fmt.Sprintf("LINK ERROR: %v", ev.Err), true)
		}
	case ev.IsFrame() && ev.State != nil:
		// The unit now holds what the stock remote sent
		m.state = *ev.State
		m.pending = false
		m.addLogEntry("Remote: "+aircode.FormatController(*ev.State), false)
	case ev.IsFrame() && ev.Err != nil:
		m.addLogEntry(fmt.Sprintf("Frame rejected (%s): %v", aircode.ErrorKind(ev.Err), ev.Err), true)
	case len(ev.Validation) > 0:
		msgType := irlink.FormatMessageType(ev.Packet.Type())
		for _, v := range ev.Validation {
			m.addLogEntry(fmt.Sprintf("%s: %s", msgType, v.Message), true)
		}
	}
}

func (m *remoteModel) finishDiscovery(bridges []link.Bridge) {
	m.discoveryDone = true
	m.bridges = bridges

	items := make([]list.Item, len(bridges))
	for i, b := range bridges {
		items[i] = bridgeItem{b}
	}
	m.bridgeList.SetItems(items)

	switch len(bridges) {
	case 0:
		m.addLogEntry("Discovery complete: no bridges answered, sending to any bridge", true)
	case 1:
		m.addLogEntry(fmt.Sprintf("Discovery complete: bridge %016X", bridges[0].Address), false)
	default:
		m.addLogEntry(fmt.Sprintf("Discovery complete: %d bridges (Tab to choose)", len(bridges)), false)
	}
}

// selectBridge retargets requests to the highlighted bridge
func (m *remoteModel) selectBridge() {
	item, ok := m.bridgeList.SelectedItem().(bridgeItem)
	if !ok {
		return
	}
	if !item.CanTransmit {
		m.addLogEntry(fmt.Sprintf("Bridge %016X cannot transmit", item.Address), true)
		return
	}
	m.target = item.Address
	if session := m.session(); session != nil {
		session.SetAddress(item.Address)
	}
	m.focusedField = focusRemote
	m.addLogEntry(fmt.Sprintf("Sending to bridge %016X", item.Address), false)
}

func (m *remoteModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m remoteModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("MISTRAL REMOTE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | target %s | q=quit Tab=switch", connStatus, formatAddress(m.target))))
	s.WriteString("\n")

	if m.hasUptime {
		s.WriteString(fmt.Sprintf(" %s %s %s",
			labelStyle.Render("Bridge Uptime:"),
			valueStyle.Render(formatUptime(m.bridgeUptime)),
			headerStyle.Render(fmt.Sprintf("(rtt %v)", m.lastRTT.Round(time.Millisecond)))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (bridges) | right panel (remote)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 40 {
		rightWidth = 40
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusBridgeList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	var bridgePanel string
	if m.discoveryDone {
		bridgePanel = listStyle.Render(m.bridgeList.View())
	} else {
		bridgePanel = listStyle.Render(warningStyle.Render("Discovering bridges..."))
	}

	remoteStyle := boxStyle.Width(rightWidth)
	if m.focusedField != focusBridgeList {
		remoteStyle = focusedBoxStyle.Width(rightWidth)
	}
	remotePanel := remoteStyle.Render(m.renderRemote(labelStyle, valueStyle, headerStyle, warningStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, bridgePanel, " ", remotePanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, headerStyle, errorStyle, warningStyle, boxStyle))

	return s.String()
}

func (m remoteModel) renderRemote(labelStyle, valueStyle, dimStyle, warningStyle lipgloss.Style) string {
	c := m.state
	power := "OFF"
	if c.On {
		power = "ON"
	}
	onOff := func(b bool) string {
		if b {
			return valueStyle.Render("on")
		}
		return dimStyle.Render("off")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Power:"), valueStyle.Render(power),
		labelStyle.Render("Mode:"), valueStyle.Render(c.Mode.String()),
		labelStyle.Render("Fan:"), valueStyle.Render(c.Fan.String()),
	))
	b.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Temperature:"),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render(c.Temperature.String())))

	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Swing:"), onOff(c.Swing),
		labelStyle.Render("V:"), valueStyle.Render(c.VSwing.String()),
		labelStyle.Render("H:"), valueStyle.Render(c.HSwing.String()),
	))
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Sleep:"), onOff(c.Sleep),
		labelStyle.Render("Turbo:"), onOff(c.Strong),
		labelStyle.Render("Light:"), onOff(c.Light),
		labelStyle.Render("Econo:"), onOff(c.Econo),
	))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Display:"), valueStyle.Render(c.TemperatureDisplay.String())))

	b.WriteString(labelStyle.Render("Timer: "))
	if m.focusedField == focusTimerInput {
		b.WriteString(m.timerInput.View())
		b.WriteString(dimStyle.Render(" hours, enter=set esc=cancel"))
	} else {
		b.WriteString(valueStyle.Render(c.Timer.String()))
	}
	b.WriteString("\n\n")

	// Send status
	auto := "manual"
	if m.autoSend {
		auto = "auto-send"
	}
	switch {
	case m.sending:
		b.WriteString(warningStyle.Render("Sending..."))
	case m.pending:
		b.WriteString(warningStyle.Render("Not sent - press enter"))
	case m.lastSent != nil:
		b.WriteString(valueStyle.Render("Sent at " + m.lastSent.Format("15:04:05")))
	default:
		b.WriteString(valueStyle.Render("In sync with remote"))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  (%s, repeat %d)", auto, m.repeat)))
	return b.String()
}

func (m remoteModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	st := m.stats
	linkErrors := st.CRCErrors + st.DecodeErrors + st.MalformedPackets + st.AnomalousValues
	errText := valueStyle.Render(fmt.Sprintf("%d", linkErrors))
	if linkErrors > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%d", linkErrors))
	}
	content := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Packets:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalPackets)),
		labelStyle.Render("Errors:"), errText,
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", st.Frames)),
		labelStyle.Render("Rejected:"), valueStyle.Render(fmt.Sprintf("%d", st.FrameErrorCount())),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", st.PacketRate)),
	)
	return boxStyle.Render(content)
}

func (m remoteModel) renderEventLog(labelStyle, dimStyle, errorStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 24
	if logHeight < 4 {
		logHeight = 4
	}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var content strings.Builder
	if len(m.errorLog) == 0 {
		content.WriteString(dimStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.errorLog); i++ {
		entry := m.errorLog[i]
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			content.WriteString(fmt.Sprintf("%s %s\n", dimStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			content.WriteString(fmt.Sprintf("%s %s\n", dimStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}

	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(content.String()))
	return s.String()
}
