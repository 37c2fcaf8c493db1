package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
)

const maxTableHeight = 12

var (
	cardStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	focusedCardStyle = cardStyle.Copy().BorderForeground(lipgloss.Color("#C89A3A"))
	infoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#1890FF"))
)

func (m *Model) rebuildTables() {
	m.tables = m.tables[:0]
	for _, tb := range m.board.Teams {
		m.tables = append(m.tables, buildTeamTable(tb))
	}
	if m.focus >= len(m.tables) {
		m.focus = 0
	}
	for i := range m.tables {
		if i == m.focus {
			m.tables[i].Focus()
		} else {
			m.tables[i].Blur()
		}
	}
}

func (m *Model) cycleFocus() {
	if len(m.tables) == 0 {
		return
	}
	m.tables[m.focus].Blur()
	m.focus = (m.focus + 1) % len(m.tables)
	m.tables[m.focus].Focus()
}

func (m *Model) renderBoard() string {
	if m.board.Empty {
		return infoStyle.Render("No times saved yet.")
	}
	cards := make([]string, 0, len(m.board.Teams))
	for i, tb := range m.board.Teams {
		style := cardStyle
		if i == m.focus {
			style = focusedCardStyle
		}
		title := labelStyle.Render(fmt.Sprintf("%s Team Time %s", tb.Team, tb.Team.Logo()))
		total := metricStyle.Render(fmt.Sprintf("%.2f", tb.Total))
		body := title + "\n" + total
		if i < len(m.tables) {
			body += "\n" + m.tables[i].View()
		}
		cards = append(cards, style.Render(body))
		if i < len(m.board.Teams)-1 {
			cards = append(cards, " ")
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func buildTeamTable(tb leaderboard.TeamBoard) table.Model {
	columns := []table.Column{
		{Title: "username", Width: 12},
		{Title: "time", Width: 8},
		{Title: "sprint", Width: 6},
	}
	rows := make([]table.Row, 0, len(tb.Rows))
	for _, r := range tb.Rows {
		rows = append(rows, table.Row{r.Username, fmt.Sprintf("%.2f", r.Time), strconv.Itoa(r.SprintNumber)})
	}
	height := len(rows) + 1
	if height > maxTableHeight {
		height = maxTableHeight
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(height),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		BorderBottom(true).
		Bold(false)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#3A3A3A")).
		Bold(false)
	return styles
}
