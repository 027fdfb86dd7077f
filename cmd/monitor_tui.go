// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/mistral/internal/link"
	"github.com/Thermoquad/mistral/pkg/aircode"
	"github.com/Thermoquad/mistral/pkg/irlink"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Last decoded frame
type frameData struct {
	timestamp time.Time
	address   uint64
	codes     []aircode.Code
	state     aircode.Controller
}

// TUI model
type monitorModel struct {
	connInfo      string
	variant       string
	showAll       bool
	statsFn       func() irlink.Statistics
	stats         irlink.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	linkClosed    bool
	bridgeUptime  uint64 // milliseconds
	hasUptime     bool
	width         int
	height        int
	quitting      bool
	lastFrame     *frameData
}

// Messages
type tickMsg time.Time
type linkEventMsg struct {
	event link.Event
}
type syncMsg struct {
	invalidBytes int
}
type linkClosedMsg struct{}

// formatUptime formats uptime in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24
	months := days / 30
	years := months / 12

	seconds %= 60
	minutes %= 60
	hours %= 24
	days %= 30
	months %= 12

	parts := []string{}
	for _, unit := range []struct {
		n    uint64
		name string
	}{
		{years, "year"},
		{months, "month"},
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
	} {
		switch {
		case unit.n == 1:
			parts = append(parts, "1 "+unit.name)
		case unit.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", unit.n, unit.name))
		}
	}
	if seconds > 0 || len(parts) == 0 {
		if seconds == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", seconds))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialMonitorModel(connInfo, variant string, showAll bool, statsFn func() irlink.Statistics) monitorModel {
	return monitorModel{
		connInfo:      connInfo,
		variant:       variant,
		showAll:       showAll,
		statsFn:       statsFn,
		stats:         statsFn(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.statsFn()
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d link errors", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case linkClosedMsg:
		m.linkClosed = true
		m.addLogEntry("Link closed", true)

	case linkEventMsg:
		m.processEvent(msg.event)
	}

	return m, nil
}

// processEvent logs one session event and tracks the last decoded frame
func (m *monitorModel) processEvent(ev link.Event) {
	if ev.Packet == nil {
		if ev.Err != nil {
			m.addLogEntry(fmt.Sprintf("LINK ERROR: %v", ev.Err), true)
		}
		return
	}

	msgType := irlink.FormatMessageType(ev.Packet.Type())
	for _, err := range ev.Validation {
		m.addLogEntry(fmt.Sprintf("%s: %s", msgType, err.Message), true)
	}

	switch {
	case ev.IsFrame() && ev.State != nil:
		m.lastFrame = &frameData{
			timestamp: ev.Time,
			address:   ev.Packet.Address(),
			codes:     ev.Codes,
			state:     *ev.State,
		}
		if m.showAll {
			m.addLogEntry("Frame: "+aircode.FormatController(*ev.State), false)
		}
	case ev.IsFrame() && ev.Err != nil:
		m.addLogEntry(fmt.Sprintf("FRAME REJECTED (%s): %v", aircode.ErrorKind(ev.Err), ev.Err), true)
	case ev.Packet.Type() == irlink.MsgPingResponse:
		if uptime, ok := irlink.GetMapUint(ev.Packet.PayloadMap(), 0); ok {
			m.bridgeUptime = uptime
			m.hasUptime = true
		}
	case m.showAll && len(ev.Validation) == 0:
		m.addLogEntry(fmt.Sprintf("%s (valid)", msgType), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
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

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("MISTRAL - MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All packets"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Variant: %s | Mode: %s | Press 'q' to quit",
		m.connInfo, m.variant, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkClosed:
		s.WriteString(errorStyle.Render("✗ Link closed"))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d link errors)", m.invalidBytes)))
		}
		if m.hasUptime {
			s.WriteString(headerStyle.Render(" | Bridge uptime: " + formatUptime(m.bridgeUptime)))
		}
		s.WriteString("\n\n")
	}

	// Statistics
	st := m.stats
	linkErrors := st.CRCErrors + st.DecodeErrors + st.MalformedPackets + st.AnomalousValues
	var validPercent, errorPercent float64
	if st.TotalPackets > 0 {
		validPercent = float64(st.ValidPackets) * 100.0 / float64(st.TotalPackets)
		errorPercent = float64(linkErrors) * 100.0 / float64(st.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", linkErrors, errorPercent)),
	))

	if st.CRCErrors > 0 || st.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.CRCErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.DecodeErrors)),
		))
	}

	if st.MalformedPackets > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", st.MalformedPackets)),
			headerStyle.Render("missing codes"), st.MissingCodes,
			headerStyle.Render("length mismatches"), st.LengthMismatches,
			headerStyle.Render("invalid codes"), st.InvalidSymbols,
		))
	}

	if st.AnomalousValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", st.AnomalousValues)),
		))
	}

	if st.Frames > 0 {
		decodedPercent := float64(st.FramesDecoded) * 100.0 / float64(st.Frames)
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
			statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Frames)),
			statsLabelStyle.Render("Decoded:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.FramesDecoded, decodedPercent)),
		))
		if len(st.FrameErrors) > 0 {
			kinds := make([]string, 0, len(st.FrameErrors))
			for kind := range st.FrameErrors {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			parts := make([]string, 0, len(kinds))
			for _, kind := range kinds {
				parts = append(parts, fmt.Sprintf("%s: %d", headerStyle.Render(kind), st.FrameErrors[kind]))
			}
			statsContent.WriteString(" (" + strings.Join(parts, ", ") + ")")
		}
		statsContent.WriteString("\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", st.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if st.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Last frame section (only shown once a frame decoded)
	if m.lastFrame != nil {
		s.WriteString(statsLabelStyle.Render("Latest Frame:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderFrameState(m.lastFrame, statsLabelStyle, statsValueStyle, headerStyle)))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 15 // Reserve space for header and stats
	if m.lastFrame != nil {
		logHeight -= 8
	}
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// renderFrameState renders a decoded frame as label/value lines
func renderFrameState(f *frameData, labelStyle, valueStyle, dimStyle lipgloss.Style) string {
	c := f.state
	power := "OFF"
	if c.On {
		power = "ON"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Power:"), valueStyle.Render(power),
		labelStyle.Render("Mode:"), valueStyle.Render(c.Mode.String()),
		labelStyle.Render("Temp:"), valueStyle.Render(c.Temperature.String()),
		labelStyle.Render("Fan:"), valueStyle.Render(c.Fan.String()),
	))
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Timer:"), valueStyle.Render(c.Timer.String()),
		labelStyle.Render("V-Swing:"), valueStyle.Render(c.VSwing.String()),
		labelStyle.Render("H-Swing:"), valueStyle.Render(c.HSwing.String()),
		labelStyle.Render("Display:"), valueStyle.Render(c.TemperatureDisplay.String()),
	))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Summary:"), aircode.FormatController(c)))
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s from 0x%016X: %s",
		f.timestamp.Format("15:04:05.000"), f.address, aircode.FormatCodes(f.codes))))
	return b.String()
}
