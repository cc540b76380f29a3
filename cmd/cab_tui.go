// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/blechbahn/stellwerk/pkg/gleis"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	cabFineStep     = 7   // left/right arrow adjustment
	cabFunctions    = 8   // F0..F7 are reachable from the number row
	cabMaxEvents    = 400 // frame log ring
	cabPollBatch    = 32  // frames drained per idle poll
	cabChromeHeight = 15  // screen rows not available to the frame log
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// cabEvent is one line of the cab's frame log.
type cabEvent struct {
	timestamp time.Time
	message   string
	isError   bool
}

// cabModel is the Bubble Tea model for the throttle. The controller is
// not safe for concurrent use, so every call to it runs inside a
// tea.Cmd and at most one such command is in flight at a time. Key
// presses only adjust the model; next() turns the difference between
// the model and the track into the single outstanding operation.
type cabModel struct {
	ctrl      *gleis.Controller
	addr      uint16
	addrLabel string
	connInfo  string

	// Track state as last confirmed
	speed     uint16
	direction uint8
	functions [cabFunctions]bool

	// Where the throttle points; synced to speed when idle
	target uint16

	// Single-flight dispatch
	inFlight bool
	queue    []tea.Cmd
	halted   bool

	// Frame log
	events   []cabEvent
	logView  viewport.Model
	logReady bool

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type cabTickMsg time.Time

// cabStateMsg carries the state read back when the cab opens.
type cabStateMsg struct {
	speed     uint16
	direction uint8
	err       error
}

type cabSpeedMsg struct {
	value uint16
	err   error
}

type cabDirectionMsg struct {
	direction uint8
	err       error
}

type cabFunctionMsg struct {
	index uint8
	on    bool
	err   error
}

type cabPowerMsg struct {
	on  bool
	err error
}

// cabFramesMsg carries frames drained from the bus between operations.
type cabFramesMsg struct {
	lines []string
	err   error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialCabModel(ctrl *gleis.Controller, addr uint16, addrLabel, connInfo string) cabModel {
	return cabModel{
		ctrl:      ctrl,
		addr:      addr,
		addrLabel: addrLabel,
		connInfo:  connInfo,
		direction: gleis.DirForward,
		inFlight:  true, // the opening state read is already on its way
		width:     80,
		height:    24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m cabModel) Init() tea.Cmd {
	return tea.Batch(cabTickCmd(), readCabStateCmd(m.ctrl, m.addr))
}

func cabTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return cabTickMsg(t)
	})
}

func (m cabModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLog()
		return m, nil

	case cabTickMsg:
		var poll tea.Cmd
		if !m.inFlight && !m.halted && len(m.queue) == 0 && m.target == m.speed {
			m.inFlight = true
			poll = drainFramesCmd(m.ctrl)
		}
		return m, tea.Batch(poll, cabTickCmd())

	case cabStateMsg:
		m.inFlight = false
		m.direction = msg.direction
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("no state reply (%v), assuming a standing train", msg.err), true)
		} else {
			m.speed = msg.speed
			m.target = msg.speed
			m.addEvent(fmt.Sprintf("cab ready: speed %d, direction %s",
				m.speed, gleis.DirectionName(m.direction)), false)
		}
		return m, m.next()

	case cabSpeedMsg:
		m.inFlight = false
		if m.fail("speed", msg.err) {
			// Snap the throttle back, the train did not take it
			m.target = m.speed
			return m, m.next()
		}
		m.speed = msg.value
		m.addEvent(fmt.Sprintf("speed %d", msg.value), false)
		return m, m.next()

	case cabDirectionMsg:
		m.inFlight = false
		if m.fail("direction", msg.err) {
			return m, m.next()
		}
		m.direction = msg.direction
		// A direction change stops the locomotive
		m.speed = 0
		m.target = 0
		m.addEvent("direction "+gleis.DirectionName(msg.direction), false)
		return m, m.next()

	case cabFunctionMsg:
		m.inFlight = false
		if m.fail(fmt.Sprintf("F%d", msg.index), msg.err) {
			return m, m.next()
		}
		m.functions[msg.index] = msg.on
		m.addEvent(fmt.Sprintf("F%d %s", msg.index, cabOnOff(msg.on)), false)
		return m, m.next()

	case cabPowerMsg:
		m.inFlight = false
		if m.fail("power", msg.err) {
			return m, m.next()
		}
		m.addEvent("track power "+cabOnOff(msg.on), false)
		return m, m.next()

	case cabFramesMsg:
		m.inFlight = false
		for _, line := range msg.lines {
			m.addEvent(line, false)
		}
		if msg.err != nil {
			m.halted = true
			m.queue = nil
			m.addEvent(fmt.Sprintf("receive failed: %v", msg.err), true)
		}
		return m, m.next()
	}

	return m, nil
}

//////////////////////////////////////////////////////////////
// Key Handling
//////////////////////////////////////////////////////////////

func (m cabModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		m.target = clampSpeed(int(m.target) + gleis.SpeedNotch)
		return m, m.next()

	case "down", "j":
		m.target = clampSpeed(int(m.target) - gleis.SpeedNotch)
		return m, m.next()

	case "right", "l":
		m.target = clampSpeed(int(m.target) + cabFineStep)
		return m, m.next()

	case "left", "h":
		m.target = clampSpeed(int(m.target) - cabFineStep)
		return m, m.next()

	case " ":
		m.queue = nil
		m.target = 0
		if m.speed != 0 {
			m.addEvent("stop", true)
		}
		return m, m.next()

	case "d":
		return m, m.enqueue(toggleDirectionCmd(m.ctrl, m.addr, m.direction))

	case "g":
		return m, m.enqueue(setPowerCmd(m.ctrl, true))

	case "x":
		return m, m.enqueue(setPowerCmd(m.ctrl, false))

	case "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	}

	if s := msg.String(); len(s) == 1 && s[0] >= '0' && s[0] < '0'+cabFunctions {
		fn := uint8(s[0] - '0')
		return m, m.enqueue(toggleFunctionCmd(m.ctrl, m.addr, fn, !m.functions[fn]))
	}

	return m, nil
}

func clampSpeed(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > gleis.SpeedMax {
		return gleis.SpeedMax
	}
	return uint16(v)
}

//////////////////////////////////////////////////////////////
// Dispatch
//////////////////////////////////////////////////////////////

// enqueue schedules a one-shot operation behind whatever runs now.
func (m *cabModel) enqueue(op tea.Cmd) tea.Cmd {
	if m.halted {
		return nil
	}
	m.queue = append(m.queue, op)
	return m.next()
}

// next starts the next controller call if none is in flight. Queued
// one-shot operations run first, then the throttle position is synced.
func (m *cabModel) next() tea.Cmd {
	if m.inFlight || m.halted {
		return nil
	}
	if len(m.queue) > 0 {
		op := m.queue[0]
		m.queue = m.queue[1:]
		m.inFlight = true
		return op
	}
	if m.target != m.speed {
		m.inFlight = true
		return setSpeedCmd(m.ctrl, m.addr, m.target)
	}
	return nil
}

// fail logs a failed operation. A transmit fault parks the cab, a
// timeout is only a missing confirm.
func (m *cabModel) fail(what string, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, gleis.ErrHalted):
		m.halted = true
		m.queue = nil
		m.addEvent(what+": transmit failed, cab halted", true)
	case errors.Is(err, gleis.ErrTimeout):
		m.addEvent(what+": no confirmation", true)
	default:
		m.addEvent(fmt.Sprintf("%s: %v", what, err), true)
	}
	return true
}

//////////////////////////////////////////////////////////////
// Operations
//////////////////////////////////////////////////////////////

// readCabStateCmd asks the track what the locomotive does right now. A
// silent decoder is fine, the cab then starts from a standing train.
func readCabStateCmd(ctrl *gleis.Controller, addr uint16) tea.Cmd {
	return func() tea.Msg {
		speed, err := ctrl.LocoSpeed(addr)
		if err != nil {
			return cabStateMsg{direction: gleis.DirForward, err: err}
		}
		dir, err := ctrl.LocoDirection(addr)
		if err != nil {
			return cabStateMsg{speed: speed, direction: gleis.DirForward, err: err}
		}
		return cabStateMsg{speed: speed, direction: dir}
	}
}

func setSpeedCmd(ctrl *gleis.Controller, addr, speed uint16) tea.Cmd {
	return func() tea.Msg {
		return cabSpeedMsg{value: speed, err: ctrl.SetLocoSpeed(addr, speed)}
	}
}

func toggleDirectionCmd(ctrl *gleis.Controller, addr uint16, current uint8) tea.Cmd {
	next := uint8(gleis.DirForward)
	if current == gleis.DirForward {
		next = gleis.DirReverse
	}
	return func() tea.Msg {
		if err := ctrl.ToggleLocoDirection(addr); err != nil {
			return cabDirectionMsg{err: err}
		}
		return cabDirectionMsg{direction: next}
	}
}

func toggleFunctionCmd(ctrl *gleis.Controller, addr uint16, fn uint8, on bool) tea.Cmd {
	power := uint8(0)
	if on {
		power = 1
	}
	return func() tea.Msg {
		return cabFunctionMsg{index: fn, on: on, err: ctrl.SetLocoFunction(addr, fn, power)}
	}
}

func setPowerCmd(ctrl *gleis.Controller, on bool) tea.Cmd {
	return func() tea.Msg {
		return cabPowerMsg{on: on, err: ctrl.SetPower(on)}
	}
}

// drainFramesCmd empties the receive queue while the cab is idle so
// traffic from other controllers shows up in the log.
func drainFramesCmd(ctrl *gleis.Controller) tea.Cmd {
	return func() tea.Msg {
		var lines []string
		for i := 0; i < cabPollBatch; i++ {
			in, ok, err := ctrl.ReceiveOne()
			if err != nil {
				if ok {
					lines = append(lines, "undecodable frame: "+err.Error())
					continue
				}
				return cabFramesMsg{lines: lines, err: err}
			}
			if !ok {
				break
			}
			lines = append(lines, gleis.FormatMessage(in))
		}
		return cabFramesMsg{lines: lines}
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m cabModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder

	s.WriteString(titleStyle.Render("STELLWERK CAB"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit", m.addrLabel, m.connInfo)))
	s.WriteString("\n\n")

	s.WriteString(m.renderThrottle(labelStyle, valueStyle, errorStyle, headerStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("FRAMES"))
	s.WriteString("\n")
	if m.logReady {
		s.WriteString(boxStyle.Width(m.width - 4).Render(m.logView.View()))
	}
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("up/down notch  left/right fine  d direction  0-7 functions  space stop  g/x power  pgup/pgdn log"))

	return s.String()
}

func (m cabModel) renderThrottle(labelStyle, valueStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var b strings.Builder

	if m.halted {
		b.WriteString(errorStyle.Render("HALTED"))
		b.WriteString(headerStyle.Render("  transmit failed, restart the cab"))
		b.WriteString("\n\n")
	}

	b.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Speed:"),
		valueStyle.Render(fmt.Sprintf("%4d", m.speed))))
	if m.target != m.speed {
		b.WriteString(headerStyle.Render(fmt.Sprintf(" -> %d", m.target)))
	}
	b.WriteString(fmt.Sprintf("   %s %s", labelStyle.Render("Direction:"),
		valueStyle.Render(gleis.DirectionName(m.direction))))
	if m.inFlight {
		b.WriteString(headerStyle.Render("   *"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderGauge(valueStyle, headerStyle))
	b.WriteString("\n\n")
	b.WriteString(m.renderFunctions(labelStyle, headerStyle))

	return boxStyle.Width(m.width - 4).Render(b.String())
}

// renderGauge draws the throttle position as a bar over the full speed
// scale.
func (m cabModel) renderGauge(valueStyle, headerStyle lipgloss.Style) string {
	width := m.width - 10
	if width < 10 {
		width = 10
	}
	filled := int(m.speed) * width / gleis.SpeedMax
	if filled > width {
		filled = width
	}
	return "[" + valueStyle.Render(strings.Repeat("█", filled)) +
		headerStyle.Render(strings.Repeat("░", width-filled)) + "]"
}

func (m cabModel) renderFunctions(labelStyle, headerStyle lipgloss.Style) string {
	onStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("10")).
		Padding(0, 1)

	var b strings.Builder
	b.WriteString(labelStyle.Render("Functions:"))
	for i := 0; i < cabFunctions; i++ {
		b.WriteString(" ")
		cell := fmt.Sprintf("F%d", i)
		if m.functions[i] {
			b.WriteString(onStyle.Render(cell))
		} else {
			b.WriteString(headerStyle.Render(cell))
		}
	}
	return b.String()
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *cabModel) addEvent(message string, isError bool) {
	m.events = append(m.events, cabEvent{timestamp: time.Now(), message: message, isError: isError})
	if len(m.events) > cabMaxEvents {
		m.events = m.events[len(m.events)-cabMaxEvents:]
	}
	if !m.logReady {
		return
	}
	wasBottom := m.logView.AtBottom()
	m.logView.SetContent(m.renderLogContent())
	if wasBottom {
		m.logView.GotoBottom()
	}
}

func (m *cabModel) resizeLog() {
	height := m.height - cabChromeHeight
	if height < 3 {
		height = 3
	}
	width := m.width - 8
	if width < 20 {
		width = 20
	}
	if !m.logReady {
		m.logView = viewport.New(width, height)
		m.logReady = true
		m.logView.SetContent(m.renderLogContent())
		m.logView.GotoBottom()
	} else {
		m.logView.Width = width
		m.logView.Height = height
	}
}

func (m cabModel) renderLogContent() string {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	if len(m.events) == 0 {
		return headerStyle.Render("  (no frames yet)")
	}

	var b strings.Builder
	for i, entry := range m.events {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(headerStyle.Render(entry.timestamp.Format("15:04:05.000")))
		b.WriteString(" ")
		if entry.isError {
			b.WriteString(errorStyle.Render(entry.message))
		} else {
			b.WriteString(entry.message)
		}
	}
	return b.String()
}

func cabOnOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
