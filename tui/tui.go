// Package tui provides a terminal browser for reviewing a deletion plan
// before a real run.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2)

	itemStyle = lipgloss.NewStyle().PaddingLeft(4)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("#7D56F4")).
				Bold(true)

	keepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	deleteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA"))
)

// Entry is one file of a planned group.
type Entry struct {
	Path   string
	Size   int64
	Keep   bool
	Reason string
}

// Group is a set of files with exactly one survivor.
type Group struct {
	Title  string
	Detail string
	Files  []Entry
}

// Plan summarises what a real run is about to do.
func Plan(groups []Group) (files int, bytes int64) {
	for _, g := range groups {
		for _, f := range g.Files {
			if !f.Keep {
				files++
				bytes += f.Size
			}
		}
	}
	return files, bytes
}

// keyMap defines keybindings for the TUI
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Next    key.Binding
	Prev    key.Binding
	Confirm key.Binding
	Quit    key.Binding
	Help    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Next: key.NewBinding(
		key.WithKeys("enter", "right", "l"),
		key.WithHelp("enter/→", "next group"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous group"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "approve plan"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "abort"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "toggle help"),
	),
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Confirm, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Next, k.Prev},
		{k.Confirm, k.Help, k.Quit},
	}
}

// Model is the TUI state. The plan itself is read-only: the user either
// approves all of it or none of it.
type Model struct {
	title        string
	groups       []Group
	currentGroup int
	cursor       int
	showHelp     bool
	reviewed     bool
	confirmed    bool
	quitting     bool
	width        int
	keys         keyMap
	help         help.Model
}

// New creates a new TUI model
func New(title string, groups []Group) Model {
	return Model{
		title:  title,
		groups: groups,
		keys:   keys,
		help:   help.New(),
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and user input
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp

		case key.Matches(msg, m.keys.Confirm):
			m.confirmed = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Down):
			if m.currentGroup < len(m.groups) && m.cursor < len(m.groups[m.currentGroup].Files)-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.Next):
			if m.currentGroup < len(m.groups) {
				m.currentGroup++
				m.cursor = 0
			}
			if m.currentGroup >= len(m.groups) {
				m.reviewed = true
			}

		case key.Matches(msg, m.keys.Prev):
			if m.currentGroup > 0 {
				m.currentGroup--
				m.cursor = 0
				m.reviewed = false
			}
		}
	}

	return m, nil
}

// Confirmed reports whether the user approved the plan.
func (m Model) Confirmed() bool {
	return m.confirmed && !m.quitting
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Aborted, nothing was deleted.\n"
	}
	if m.confirmed {
		return ""
	}
	if len(m.groups) == 0 {
		return "Nothing to delete.\n"
	}
	if m.reviewed || m.currentGroup >= len(m.groups) {
		return m.renderConfirmation()
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render(" " + m.title + " "))
	s.WriteString("\n\n")

	group := m.groups[m.currentGroup]
	s.WriteString(headerStyle.Render(fmt.Sprintf("Group %d/%d  %s", m.currentGroup+1, len(m.groups), group.Title)))
	s.WriteString("\n")
	if group.Detail != "" {
		s.WriteString(infoStyle.Render(group.Detail))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	s.WriteString(m.renderFileList(group))
	s.WriteString("\n")

	if m.showHelp {
		s.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		s.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	return s.String()
}

// renderFileList renders the files of one group with their fate.
func (m Model) renderFileList(group Group) string {
	var s strings.Builder

	for i, file := range group.Files {
		var line strings.Builder

		if file.Keep {
			line.WriteString(keepStyle.Render("KEEP "))
		} else {
			line.WriteString(deleteStyle.Render("DEL  "))
		}

		filename := filepath.Base(file.Path)
		if i == m.cursor {
			line.WriteString(selectedItemStyle.Render("> " + filename))
		} else {
			line.WriteString(itemStyle.Render(filename))
		}

		line.WriteString(infoStyle.Render(fmt.Sprintf(" (%s, %s)", humanize.IBytes(uint64(file.Size)), file.Reason)))

		s.WriteString(line.String())
		s.WriteString("\n")
	}

	if m.cursor < len(group.Files) {
		s.WriteString(infoStyle.Render(group.Files[m.cursor].Path))
		s.WriteString("\n")
	}

	return s.String()
}

// renderConfirmation renders the final confirmation screen
func (m Model) renderConfirmation() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" Confirmation "))
	s.WriteString("\n\n")

	files, bytes := Plan(m.groups)
	s.WriteString(fmt.Sprintf("About to delete %d files (%s) across %d groups.\n\n",
		files, humanize.IBytes(uint64(bytes)), len(m.groups)))

	shown := 0
list:
	for _, g := range m.groups {
		for _, f := range g.Files {
			if f.Keep {
				continue
			}
			if shown == 10 {
				s.WriteString(fmt.Sprintf("... and %d more\n", files-shown))
				break list
			}
			s.WriteString(fmt.Sprintf("  • %s\n", f.Path))
			shown++
		}
	}
	s.WriteString("\nPress y to delete, ← to go back, or Esc to abort.\n")

	return s.String()
}

// Run shows the plan and reports whether the user approved it.
func Run(title string, groups []Group) (bool, error) {
	p := tea.NewProgram(New(title, groups), tea.WithAltScreen())
	m, err := p.Run()
	if err != nil {
		return false, err
	}

	return m.(Model).Confirmed(), nil
}
