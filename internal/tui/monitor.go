// Package tui provides a live parameter monitor for a console session.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nixcodex/ls9/sdk/contracts"
)

var (
	accent = lipgloss.Color("#00B4FF")
	amber  = lipgloss.Color("#FFB000")
	dim    = lipgloss.Color("#666666")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 2).
			MarginBottom(1)

	rowStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			PaddingLeft(2)

	freshStyle = lipgloss.NewStyle().
			Foreground(amber)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dim).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

// freshFor is how long a row stays highlighted after it changed.
const freshFor = time.Second

// DefaultStep is the amount +/- nudges an integer parameter by.
const DefaultStep = 10

type row struct {
	addr    contracts.Address
	value   contracts.Value
	changed time.Time
	count   int
}

type changeMsg struct {
	addr  contracts.Address
	value contracts.Value
	at    time.Time
}

type writeDoneMsg struct {
	addr contracts.Address
	err  error
}

// Model is the monitor state.
type Model struct {
	console contracts.Console
	schema  contracts.Schema
	changes <-chan changeMsg
	timeout time.Duration
	step    int32

	spinner  spinner.Model
	rows     []row
	selected int
	err      error
	now      func() time.Time
}

// New creates a monitor fed by console's change notifications. The returned
// function unsubscribes and must be called once the program exits.
func New(console contracts.Console, schema contracts.Schema) (Model, func()) {
	ch := make(chan changeMsg, 64)
	unsubscribe := console.Subscribe(func(addr contracts.Address, v contracts.Value) {
		select {
		case ch <- changeMsg{addr: addr, value: v, at: time.Now()}:
		default:
		}
	})

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		console: console,
		schema:  schema,
		changes: ch,
		timeout: 2 * time.Second,
		step:    DefaultStep,
		spinner: s,
		now:     time.Now,
	}, unsubscribe
}

// Init starts the spinner and the change listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForChange())
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.changes
		if !ok {
			return nil
		}
		return msg
	}
}

// Update handles key presses and console events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case changeMsg:
		m.record(msg)
		return m, m.waitForChange()

	case writeDoneMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.rows)-1 {
			m.selected++
		}
	case "c":
		m.rows = nil
		m.selected = 0
		m.err = nil
	case "+", "=":
		return m, m.nudge(m.step)
	case "-", "_":
		return m, m.nudge(-m.step)
	case " ", "enter":
		return m, m.toggle()
	}
	return m, nil
}

// record inserts or updates the row for a change, keeping rows ordered by
// address.
func (m *Model) record(msg changeMsg) {
	i := sort.Search(len(m.rows), func(i int) bool { return !less(m.rows[i].addr, msg.addr) })
	if i < len(m.rows) && m.rows[i].addr == msg.addr {
		m.rows[i].value = msg.value
		m.rows[i].changed = msg.at
		m.rows[i].count++
		return
	}
	rows := make([]row, 0, len(m.rows)+1)
	rows = append(rows, m.rows[:i]...)
	rows = append(rows, row{addr: msg.addr, value: msg.value, changed: msg.at, count: 1})
	rows = append(rows, m.rows[i:]...)
	m.rows = rows
	if i <= m.selected && len(m.rows) > 1 {
		m.selected++
	}
}

func less(a, b contracts.Address) bool {
	if a.Element != b.Element {
		return a.Element < b.Element
	}
	if a.Channel != b.Channel {
		return a.Channel < b.Channel
	}
	return a.Index < b.Index
}

func (m Model) current() (row, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.selected], true
}

func (m Model) nudge(delta int32) tea.Cmd {
	r, ok := m.current()
	if !ok || r.value.Kind() != contracts.KindInteger {
		return nil
	}
	def := m.schema.Lookup(r.addr.Element)
	next := r.value.Int() + delta
	if def.Min != def.Max {
		next = min(max(next, def.Min), def.Max)
	}
	return m.write(r.addr, contracts.IntValue(next))
}

func (m Model) toggle() tea.Cmd {
	r, ok := m.current()
	if !ok || r.value.Kind() != contracts.KindBool {
		return nil
	}
	return m.write(r.addr, contracts.BoolValue(!r.value.Bool()))
}

func (m Model) write(addr contracts.Address, v contracts.Value) tea.Cmd {
	console, timeout := m.console, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return writeDoneMsg{addr: addr, err: console.Write(ctx, addr, v)}
	}
}

// View renders the monitor.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" LS9 MONITOR "))
	s.WriteString("\n")

	if len(m.rows) == 0 {
		s.WriteString(fmt.Sprintf("%s Waiting for parameter changes...\n", m.spinner.View()))
	} else {
		now := m.now()
		for i, r := range m.rows {
			name := m.schema.Lookup(r.addr.Element).Name
			line := fmt.Sprintf("%-12s ch %-3d idx %-2d %10s  (%d)", name, r.addr.Channel, r.addr.Index, r.value, r.count)
			style := rowStyle
			if i == m.selected {
				style = selectedStyle
				line = "▸ " + line
			} else {
				line = "  " + line
			}
			if now.Sub(r.changed) < freshFor {
				line = freshStyle.Render(line)
			}
			s.WriteString(style.Render(line))
			s.WriteString("\n")
		}
	}

	if m.err != nil {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s", m.err)))
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("↑/↓: select • +/-: nudge • space: toggle • c: clear • q: quit"))
	return boxStyle.Render(s.String())
}

// Run shows the monitor until the user quits.
func Run(console contracts.Console, schema contracts.Schema) error {
	m, unsubscribe := New(console, schema)
	defer unsubscribe()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
