// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dashboard is the terminal client of the simulator API.
//
// # Description
//
// The dashboard holds the rate constants and initial populations as sliders,
// posts them to /api/simulate on demand, and charts the returned series.
//
// # State
//
//	idle ──run──► loading ──► success ─┐
//	  ▲                  └──► error ───┤
//	  └──────────────reset─────────────┘
//
// A run issued while another is in flight is sent as well; whichever
// response arrives last is what the dashboard shows.
//
// # Startup
//
// When the simulator is also a Connector, Init checks the server's health
// and fetches its defaults. Reset restores those defaults; if the server
// cannot be reached the local model defaults are used instead.
//
// # Thread Safety
//
// The model is single-threaded within the bubbletea event loop. The only
// concurrent work is the HTTP calls made by the connect and simulate
// commands.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/rebirthsim/pkg/ux"
	"github.com/AleutianAI/rebirthsim/services/simulator/datatypes"
)

// =============================================================================
// Dependencies and options
// =============================================================================

// Simulator is the part of the API client the dashboard uses.
// *client.Client satisfies it.
type Simulator interface {
	Simulate(ctx context.Context, req *datatypes.SimulateRequest) (*datatypes.SimulateResponse, error)
}

// Connector is the part of the API client used at startup to check the
// server and fetch its defaults. *client.Client satisfies it.
type Connector interface {
	Health(ctx context.Context) (*datatypes.HealthResponse, error)
	Defaults(ctx context.Context) (*datatypes.DefaultsResponse, error)
}

// connectTimeout bounds the startup health and defaults calls together.
const connectTimeout = 5 * time.Second

// Options are sent with every run.
type Options struct {
	// Solver is tau_leaping or ssa. Empty uses the server default.
	Solver string

	// Trajectories averages an ensemble. Zero means one.
	Trajectories int

	// Seed makes every run reproducible. Nil lets the server pick.
	Seed *uint64

	// Endpoint is shown in the header.
	Endpoint string
}

// =============================================================================
// Messages
// =============================================================================

// resultMsg carries the settlement of one simulate call.
type resultMsg struct {
	resp *datatypes.SimulateResponse
	err  error
}

// connectMsg carries the startup health check and, when the server is up,
// its defaults.
type connectMsg struct {
	health      *datatypes.HealthResponse
	defaults    *datatypes.DefaultsResponse
	err         error
	defaultsErr error
}

// =============================================================================
// Status
// =============================================================================

// Status is the dashboard's request state.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Connection is what the dashboard knows about the server.
type Connection int

const (
	// ConnectionUnchecked means the simulator cannot report health.
	ConnectionUnchecked Connection = iota
	ConnectionChecking
	ConnectionOnline
	ConnectionOffline
)

func (c Connection) String() string {
	switch c {
	case ConnectionUnchecked:
		return "unchecked"
	case ConnectionChecking:
		return "checking"
	case ConnectionOnline:
		return "online"
	case ConnectionOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model of the dashboard.
type Model struct {
	sim       Simulator
	connector Connector
	opts      Options

	controls []Control
	defaults []Control
	selected int

	conn          Connection
	serverVersion string
	connNote      string

	// Typed input for the selected control.
	editing  bool
	input    textinput.Model
	inputErr string

	loading bool
	result  *datatypes.SimulateResponse
	errMsg  string

	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	width    int
	quitting bool
}

// New creates a dashboard model that sends runs to sim.
func New(sim Simulator, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ux.ColorChakra)

	ti := textinput.New()
	ti.CharLimit = 24
	ti.Width = 16

	m := Model{
		sim:      sim,
		opts:     opts,
		controls: DefaultControls(),
		defaults: DefaultControls(),
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeyMap(),
		width:    80,
	}
	if c, ok := sim.(Connector); ok {
		m.connector = c
		m.conn = ConnectionChecking
	}
	return m
}

// Init implements tea.Model. It starts the server check when the simulator
// supports one.
func (m Model) Init() tea.Cmd {
	if m.connector == nil {
		return nil
	}
	return connectCmd(m.connector)
}

// Connection reports the result of the startup server check.
func (m Model) Connection() Connection { return m.conn }

// Defaults returns a copy of the sliders Reset restores.
func (m Model) Defaults() []Control {
	return slices.Clone(m.defaults)
}

// Status reports the current request state.
func (m Model) Status() Status {
	switch {
	case m.loading:
		return StatusLoading
	case m.errMsg != "":
		return StatusError
	case m.result != nil:
		return StatusSuccess
	default:
		return StatusIdle
	}
}

// Controls returns a copy of the sliders.
func (m Model) Controls() []Control {
	return append([]Control(nil), m.controls...)
}

// Result returns the last successful response, or nil.
func (m Model) Result() *datatypes.SimulateResponse { return m.result }

// Err returns the displayed error message.
func (m Model) Err() string { return m.errMsg }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case resultMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.result = msg.resp
		return m, nil

	case connectMsg:
		return m.applyConnect(msg), nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.selected = (m.selected + len(m.controls) - 1) % len(m.controls)

	case key.Matches(msg, m.keys.Down):
		m.selected = (m.selected + 1) % len(m.controls)

	case key.Matches(msg, m.keys.Decrease):
		m.controls[m.selected].Nudge(-1)

	case key.Matches(msg, m.keys.Increase):
		m.controls[m.selected].Nudge(1)

	case key.Matches(msg, m.keys.Edit):
		m.editing = true
		m.inputErr = ""
		m.input.SetValue(m.controls[m.selected].Format())
		m.input.CursorEnd()
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Run):
		return m.run()

	case key.Matches(msg, m.keys.Reset):
		m.reset()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// updateEditing routes keys to the text input until enter or esc.
func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.inputErr = ""
		m.input.Blur()
		return m, nil

	case tea.KeyEnter:
		v, err := ParseValue(m.input.Value())
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.controls[m.selected].Value = v
		m.editing = false
		m.inputErr = ""
		m.input.Blur()
		return m, nil

	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run issues a simulate call with the current slider values.
func (m Model) run() (tea.Model, tea.Cmd) {
	m.loading = true
	m.errMsg = ""
	return m, tea.Batch(simulateCmd(m.sim, BuildRequest(m.controls, m.opts)), m.spinner.Tick)
}

// applyConnect records the server check. Server defaults replace the local
// ones for Reset, and for the sliders too unless the user already moved one.
func (m Model) applyConnect(msg connectMsg) Model {
	if msg.err != nil {
		m.conn = ConnectionOffline
		m.connNote = msg.err.Error()
		return m
	}
	m.conn = ConnectionOnline
	m.connNote = ""
	if msg.health != nil {
		m.serverVersion = msg.health.Version
	}
	if msg.defaultsErr != nil || msg.defaults == nil {
		m.connNote = "using local defaults"
		return m
	}
	untouched := slices.Equal(m.controls, m.defaults)
	m.defaults = ControlsFromDefaults(*msg.defaults)
	if untouched {
		m.controls = slices.Clone(m.defaults)
	}
	return m
}

// reset restores the defaults and clears the result and error. An in-flight
// run still settles and is shown when it arrives.
func (m *Model) reset() {
	m.controls = slices.Clone(m.defaults)
	m.result = nil
	m.errMsg = ""
	m.inputErr = ""
}

func connectCmd(c Connector) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		health, err := c.Health(ctx)
		if err != nil {
			return connectMsg{err: err}
		}
		defaults, err := c.Defaults(ctx)
		return connectMsg{health: health, defaults: defaults, defaultsErr: err}
	}
}

func simulateCmd(sim Simulator, req *datatypes.SimulateRequest) tea.Cmd {
	return func() tea.Msg {
		if sim == nil {
			return resultMsg{err: errors.New("no simulator configured")}
		}
		resp, err := sim.Simulate(context.Background(), req)
		return resultMsg{resp: resp, err: err}
	}
}

// =============================================================================
// View
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(ux.Styles.Title.Render("Creation Rebirth Simulator"))
	if m.opts.Endpoint != "" {
		b.WriteString("  " + ux.Styles.Muted.Render(m.opts.Endpoint))
	}
	if status := m.renderConnection(); status != "" {
		b.WriteString("  " + status)
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderControls())
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Simulating...\n")
	case m.errMsg != "":
		b.WriteString(ux.Styles.ErrorBox.Render(ux.Styles.Error.Render("Simulation failed") + "\n" + m.errMsg))
		b.WriteString("\n")
	}

	if m.result != nil && !m.loading {
		b.WriteString("\n")
		b.WriteString(renderCellChart(m.result.Data, m.width))
		b.WriteString("\n\n")
		b.WriteString(renderResourceChart(m.result.Data, m.width))
		b.WriteString("\n\n")
		b.WriteString(renderSummary(m.result))
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Model) renderConnection() string {
	switch m.conn {
	case ConnectionChecking:
		return ux.Styles.Muted.Render("connecting...")
	case ConnectionOnline:
		s := ux.Styles.Success.Render("● online")
		if m.serverVersion != "" {
			s += ux.Styles.Muted.Render(" " + m.serverVersion)
		}
		if m.connNote != "" {
			s += ux.Styles.Muted.Render(" (" + m.connNote + ")")
		}
		return s
	case ConnectionOffline:
		return ux.Styles.Warning.Render("○ offline") + ux.Styles.Muted.Render(" "+m.connNote)
	}
	return ""
}

const sliderWidth = 24

func (m Model) renderControls() string {
	var b strings.Builder
	for i, c := range m.controls {
		if i == 4 {
			b.WriteString("\n")
		}
		cursor := "  "
		name := ux.Styles.Muted.Render(fmt.Sprintf("%-20s", c.Label))
		if i == m.selected {
			cursor = ux.Styles.Highlight.Render("▸ ")
			name = ux.Styles.Highlight.Render(fmt.Sprintf("%-20s", c.Label))
		}

		value := c.Format()
		if i == m.selected && m.editing {
			value = m.input.View()
		}
		fmt.Fprintf(&b, "%s%s %s %s\n", cursor, name, sliderBar(c), value)
	}
	if m.inputErr != "" {
		b.WriteString(ux.Styles.Error.Render("  "+m.inputErr) + "\n")
	}
	return b.String()
}

func sliderBar(c Control) string {
	pos := int(c.Fraction() * float64(sliderWidth-1))
	return ux.Styles.Muted.Render(strings.Repeat("─", pos)) +
		ux.Styles.Highlight.Render("●") +
		ux.Styles.Muted.Render(strings.Repeat("─", sliderWidth-1-pos))
}

// =============================================================================
// Program
// =============================================================================

// Run starts the dashboard and blocks until the user quits or ctx ends.
func Run(ctx context.Context, sim Simulator, opts Options, progOpts ...tea.ProgramOption) error {
	progOpts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, progOpts...)
	_, err := tea.NewProgram(New(sim, opts), progOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
