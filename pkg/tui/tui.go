// Package tui is an interactive terminal viewer of the live device graph:
// the local AL entity, every discovered neighbor, and their radios/BSSes,
// refreshed on a timer from model.Graph.Snapshot.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/krisarmstrong/hmeshd/pkg/engine"
	"github.com/krisarmstrong/hmeshd/pkg/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	localStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	deviceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

const refreshInterval = time.Second

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	loop       *engine.Loop
	localALMAC model.MAC
	devices    []model.DeviceSnapshot
	stats      engine.Stats
	started    time.Time
}

// NewModel builds the TUI's root model over a running Loop.
func NewModel(loop *engine.Loop) tea.Model {
	return model{
		loop:       loop,
		localALMAC: loop.Graph().Local().ALMAC,
		started:    time.Now(),
	}
}

// Run starts the interactive topology viewer and blocks until the user
// quits.
func Run(loop *engine.Loop) error {
	p := tea.NewProgram(NewModel(loop), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.devices = m.loop.Graph().Snapshot()
		m.stats = m.loop.Stats.Snapshot()
		return m, tickCmd()
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" hmeshd topology - %s ", m.localALMAC)))
	s.WriteString("\n\n")

	s.WriteString(statsStyle.Render(fmt.Sprintf(
		"uptime %s  cmdu rx/tx %d/%d  dropped %d  wsc started/completed/failed %d/%d/%d",
		time.Since(m.started).Round(time.Second),
		m.stats.CMDURx, m.stats.CMDUTx, m.stats.FramesDropped+m.stats.MalformedDropped,
		m.stats.WSCExchangesStarted, m.stats.WSCExchangesCompleted, m.stats.WSCExchangesFailed,
	)))
	s.WriteString("\n\n")

	if len(m.devices) == 0 {
		s.WriteString(helpStyle.Render("no devices discovered yet"))
		s.WriteString("\n")
	}

	for _, d := range m.devices {
		line := formatDevice(d, d.ALMAC == m.localALMAC)
		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("q: quit"))
	return s.String()
}

func formatDevice(d model.DeviceSnapshot, isLocal bool) string {
	role := ""
	switch {
	case d.IsMultiAPController:
		role = " [controller]"
	case d.IsMultiAPAgent:
		role = " [agent]"
	}

	line := fmt.Sprintf("%s%s  ifaces=%d radios=%d", d.ALMAC, role, d.InterfaceCount, d.RadioCount)
	if isLocal {
		return localStyle.Render("* " + line + " (local)")
	}

	age := time.Since(d.LastSeen).Round(time.Second)
	line = fmt.Sprintf("  %s  last seen %s ago", line, age)
	if age > 90*time.Second {
		return staleStyle.Render(line)
	}
	return deviceStyle.Render(line)
}
