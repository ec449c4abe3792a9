package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notesim/internal/usecase"
)

// SimilarPort is the TUI-facing subset of the query use case.
type SimilarPort interface {
	SimilarCached(ctx context.Context, identifier string) (*usecase.SimilarView, error)
	SimilarRefreshed(ctx context.Context, identifier string) (*usecase.SimilarView, error)
}

// Result hotkeys. "a" is the current note and "z" refreshes.
const resultKeys = "bcdefghijklmnopqrstuvwxy"

type cachedMsg struct {
	view *usecase.SimilarView
	err  error
}

type refreshedMsg struct {
	view *usecase.SimilarView
	err  error
}

// Model is the Bubble Tea model for the similar-notes panel. It shows the
// cached ranking first and swaps in the refreshed one when it arrives.
type Model struct {
	ctx      context.Context
	service  SimilarPort
	note     string
	view     *usecase.SimilarView
	spinner  spinner.Model
	loading  bool
	status   string
	err      error
	selected string
}

// New creates a panel for the note named by identifier.
func New(ctx context.Context, service SimilarPort, identifier string) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))
	return Model{
		ctx:     ctx,
		service: service,
		note:    identifier,
		spinner: sp,
		loading: true,
		status:  "Loading cached embeddings...",
	}
}

// Selected returns the path chosen with a hotkey, or "" if the user quit.
func (m Model) Selected() string { return m.selected }

// Err returns the error that ended the session, if any.
func (m Model) Err() error { return m.err }

// Init loads the cached ranking and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCached())
}

func (m Model) loadCached() tea.Cmd {
	return func() tea.Msg {
		view, err := m.service.SimilarCached(m.ctx, m.note)
		return cachedMsg{view: view, err: err}
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		view, err := m.service.SimilarRefreshed(m.ctx, m.note)
		return refreshedMsg{view: view, err: err}
	}
}

// Update handles phase results, spinner ticks and hotkeys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case cachedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.loading = false
			m.status = "Error: " + msg.err.Error()
			return m, tea.Quit
		}
		m.view = msg.view
		m.note = msg.view.Note
		m.status = "Checking embedding..."
		return m, m.refresh()
	case refreshedMsg:
		m.loading = false
		switch {
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.view != nil:
			m.view = msg.view
			m.status = "(Updated)"
		default:
			m.status = "Up to date"
		}
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "ctrl+d", "esc", "q":
		return m, tea.Quit
	case "a":
		m.selected = m.note
		return m, tea.Quit
	case "z":
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.status = "Refreshing..."
		return m, tea.Batch(m.spinner.Tick, m.refresh())
	}

	if len(key) != 1 || m.view == nil {
		return m, nil
	}
	idx := strings.Index(resultKeys, key)
	if idx < 0 || idx >= len(m.view.Results) {
		return m, nil
	}
	m.selected = m.view.Results[idx].Path
	return m, tea.Quit
}

// View renders the header, the current note and one hotkey row per result.
func (m Model) View() string {
	var b strings.Builder

	header := "Similar notes"
	if m.view != nil {
		header = m.view.Header
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(keyStyle.Render("[a]") + " " + noteStyle.Render(m.note))
	b.WriteString("\n\n")

	switch {
	case m.view == nil:
	case len(m.view.Results) == 0 && m.view.Message != "":
		b.WriteString(mutedStyle.Render(m.view.Message))
		b.WriteString("\n")
	case len(m.view.Results) == 0:
		b.WriteString(mutedStyle.Render("No similar notes."))
		b.WriteString("\n")
	default:
		for i, r := range m.view.Results {
			if i >= len(resultKeys) {
				break
			}
			fmt.Fprintf(&b, "%s %-40s %s\n",
				keyStyle.Render("["+resultKeys[i:i+1]+"]"),
				r.DisplayName,
				scoreStyle.Render(fmt.Sprintf("%3.0f%%", r.DisplayPercent()*100)))
		}
	}

	b.WriteString("\n")
	if m.loading {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("a: open note  b-y: open result  z: refresh  q: quit"))
	return b.String()
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)
