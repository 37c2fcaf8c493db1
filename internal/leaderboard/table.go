package leaderboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/sprintwatch/internal/model"
)

type column struct {
	title string
	right bool
	cell  func(model.TimeEntry) string
}

var teamColumns = []column{
	{title: "username", cell: func(e model.TimeEntry) string { return e.Username }},
	{title: "time", right: true, cell: func(e model.TimeEntry) string { return fmt.Sprintf("%.2f", e.Time) }},
	{title: "sprint_number", right: true, cell: func(e model.TimeEntry) string { return strconv.Itoa(e.SprintNumber) }},
}

// FormatTeam renders one team as aligned text lines: a title with the team
// total followed by a username/time/sprint table.
func FormatTeam(tb TeamBoard) []string {
	cells := make([][]string, 0, len(tb.Rows)+1)
	header := make([]string, len(teamColumns))
	for i, c := range teamColumns {
		header[i] = c.title
	}
	cells = append(cells, header)
	for _, r := range tb.Rows {
		row := make([]string, len(teamColumns))
		for i, c := range teamColumns {
			row[i] = c.cell(r)
		}
		cells = append(cells, row)
	}

	// Emoji logos and non-ASCII names occupy more than one cell.
	widths := make([]int, len(teamColumns))
	for _, row := range cells {
		for i, v := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(v))
		}
	}

	lines := make([]string, 0, len(cells)+1)
	lines = append(lines, fmt.Sprintf("%s Team Time %s  %.2f", tb.Team, tb.Team.Logo(), tb.Total))
	for _, row := range cells {
		padded := make([]string, len(row))
		for i, v := range row {
			if teamColumns[i].right {
				padded[i] = runewidth.FillLeft(v, widths[i])
			} else {
				padded[i] = runewidth.FillRight(v, widths[i])
			}
		}
		lines = append(lines, strings.TrimRight(strings.Join(padded, " "), " "))
	}
	return lines
}
