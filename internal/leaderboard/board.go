package leaderboard

import (
	"context"

	"github.com/verte-zerg/sprintwatch/internal/model"
)

// Reader is the read side of the record store used to build a board.
type Reader interface {
	LoadAll(ctx context.Context) ([]model.TimeEntry, error)
	LoadTeamToday(ctx context.Context, team model.Team) ([]model.TimeEntry, error)
	LoadUserToday(ctx context.Context, username string) ([]model.TimeEntry, error)
}

// TeamBoard is one team's column of today's board.
type TeamBoard struct {
	Team  model.Team        `json:"team"`
	Total float64           `json:"total"`
	Rows  []model.TimeEntry `json:"rows"`
}

// Board contains precomputed data for leaderboard rendering.
type Board struct {
	Empty       bool        `json:"empty"`
	UserAverage float64     `json:"user_average"`
	Teams       []TeamBoard `json:"teams"`
}

// Build loads today's rows for every leaderboard team plus the user's
// daily average. Empty is set when nothing has been saved at all.
func Build(ctx context.Context, st Reader, username string) (Board, error) {
	all, err := st.LoadAll(ctx)
	if err != nil {
		return Board{}, err
	}
	mine, err := st.LoadUserToday(ctx, username)
	if err != nil {
		return Board{}, err
	}
	board := Board{
		Empty:       len(all) == 0,
		UserAverage: Average(mine),
	}
	for _, team := range model.LeaderboardTeams {
		rows, err := st.LoadTeamToday(ctx, team)
		if err != nil {
			return Board{}, err
		}
		board.Teams = append(board.Teams, TeamBoard{
			Team:  team,
			Total: Total(rows),
			Rows:  rows,
		})
	}
	return board, nil
}

// Total sums row times, rounded for display.
func Total(rows []model.TimeEntry) float64 {
	var sum float64
	for _, r := range rows {
		sum += r.Time
	}
	return model.RoundSeconds(sum)
}

// Average is the mean row time; zero rows give zero.
func Average(rows []model.TimeEntry) float64 {
	var sum float64
	for _, r := range rows {
		sum += r.Time
	}
	return sum / float64(max(1, len(rows)))
}

// EditedRows converts stored rows into editor rows carrying their ids.
func EditedRows(rows []model.TimeEntry) []model.EditedRow {
	out := make([]model.EditedRow, len(rows))
	for i, r := range rows {
		id := r.ID
		out[i] = model.EditedRow{
			ID:           &id,
			Username:     r.Username,
			SprintNumber: r.SprintNumber,
			Time:         model.RoundSeconds(r.Time),
		}
	}
	return out
}
