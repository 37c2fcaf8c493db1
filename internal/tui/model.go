// Package tui provides the Bubble Tea stopwatch and leaderboard interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
	"github.com/verte-zerg/sprintwatch/internal/session"
	"github.com/verte-zerg/sprintwatch/internal/stopwatch"
)

// Store is what the UI needs from the record store.
type Store interface {
	session.Saver
	leaderboard.Reader
}

type statusKind int

const (
	statusNone statusKind = iota
	statusSuccess
	statusWarning
	statusError
)

type tickMsg struct {
	id int
}

// Model implements the Bubble Tea stopwatch UI.
type Model struct {
	store    Store
	identity auth.Identity
	sw       *stopwatch.Stopwatch

	width  int
	height int

	// tickID invalidates ticks scheduled by an earlier start.
	tickID int

	board  leaderboard.Board
	tables []table.Model
	focus  int

	status     string
	statusKind statusKind
}

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	metricStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAAD14"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	metricBoxStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

// NewModel constructs the stopwatch UI for an authenticated user.
func NewModel(st Store, id auth.Identity, sw *stopwatch.Stopwatch) *Model {
	if sw == nil {
		sw = stopwatch.New(nil)
	}
	m := &Model{
		store:    st,
		identity: id,
		sw:       sw,
	}
	m.refreshBoard()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.rebuildTables()
		return m, nil
	case tickMsg:
		if msg.id != m.tickID || !m.sw.Running() {
			return m, nil
		}
		return m, m.tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ", "enter":
			return m, m.toggle()
		case "r":
			m.sw.Reset()
			m.tickID++
			m.clearStatus()
			return m, nil
		case "s":
			m.save()
			return m, nil
		case "tab":
			m.cycleFocus()
			return m, nil
		case "ctrl+r":
			m.refreshBoard()
			return m, nil
		}
		if len(m.tables) > 0 {
			var cmd tea.Cmd
			m.tables[m.focus], cmd = m.tables[m.focus].Update(msg)
			return m, cmd
		}
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.renderMetrics(),
		footerStyle.Render(fmt.Sprintf("[space] %s  [r] 🔁 Reset  [s] 💾 Save Time  [tab] switch table  [q] quit", m.sw.Label())),
	}
	if status := m.renderStatus(); status != "" {
		sections = append(sections, status)
	}
	sections = append(sections, "", titleStyle.Render("🏆 Leader Board"), m.renderBoard())
	return strings.Join(sections, "\n")
}

func (m *Model) toggle() tea.Cmd {
	m.sw.Toggle()
	m.clearStatus()
	if !m.sw.Running() {
		return nil
	}
	m.tickID++
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	id := m.tickID
	return tea.Tick(stopwatch.TickInterval, func(time.Time) tea.Msg {
		return tickMsg{id: id}
	})
}

func (m *Model) save() {
	_, err := session.Save(context.Background(), m.store, m.identity, m.sw)
	var notice *stopwatch.Notice
	switch {
	case errors.As(err, &notice):
		m.setStatus(statusWarning, notice.Message)
	case err != nil:
		logErrf("failed to save time: %v\n", err)
		m.setStatus(statusError, fmt.Sprintf("Failed to save time: %v", err))
	default:
		m.setStatus(statusSuccess, "Saved time successfully!")
		m.refreshBoard()
	}
}

func (m *Model) refreshBoard() {
	board, err := leaderboard.Build(context.Background(), m.store, m.identity.Username)
	if err != nil {
		logErrf("failed to load leaderboard: %v\n", err)
		m.setStatus(statusError, fmt.Sprintf("Failed to load leaderboard: %v", err))
		return
	}
	m.board = board
	m.rebuildTables()
}

func (m *Model) setStatus(kind statusKind, msg string) {
	m.statusKind = kind
	m.status = msg
}

func (m *Model) clearStatus() {
	m.setStatus(statusNone, "")
}

func (m *Model) renderHeader() string {
	return titleStyle.Render(fmt.Sprintf("⏱️ Stopwatch — %s %s", m.identity.DisplayName, m.identity.Team.Logo()))
}

func (m *Model) renderMetrics() string {
	current := metricBoxStyle.Render(labelStyle.Render("Time (s)") + "\n" + metricStyle.Render(fmt.Sprintf("%.2f", m.sw.Seconds())))
	avg := metricBoxStyle.Render(labelStyle.Render("Avg Time (s)") + "\n" + metricStyle.Render(fmt.Sprintf("%.2f", m.board.UserAverage)))
	return lipgloss.JoinHorizontal(lipgloss.Top, current, " ", avg)
}

func (m *Model) renderStatus() string {
	switch m.statusKind {
	case statusSuccess:
		return successStyle.Render(m.status)
	case statusWarning:
		return warningStyle.Render(m.status)
	case statusError:
		return errorStyle.Render(m.status)
	default:
		return ""
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
