// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Zone is the fixed UTC-5 offset used for every saved timestamp and for
// deciding which rows belong to "today".
var Zone = time.FixedZone("UTC-5", -5*60*60)

// DateLayout is the saved_at_date column format.
const DateLayout = "2006-01-02"

// Team labels a leaderboard partition.
type Team string

// Known teams.
const (
	TeamBlue  Team = "Blue"
	TeamWhite Team = "White"
	TeamCoach Team = "Coach"
)

// ErrUnknownTeam is returned by ParseTeam for labels outside the fixed set.
var ErrUnknownTeam = errors.New("unknown team")

// Teams lists every valid team label.
var Teams = []Team{TeamBlue, TeamWhite, TeamCoach}

// LeaderboardTeams are the teams that get a column on the daily board.
var LeaderboardTeams = []Team{TeamBlue, TeamWhite}

var teamLogos = map[Team]string{
	TeamBlue:  "🔵",
	TeamWhite: "⚪",
	TeamCoach: "🧢",
}

// ParseTeam matches a label case-insensitively against the known teams.
func ParseTeam(s string) (Team, error) {
	s = strings.TrimSpace(s)
	for _, t := range Teams {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTeam, s)
}

// Logo returns the emoji shown next to the team name.
func (t Team) Logo() string {
	return teamLogos[t]
}

// TimeEntry is one persisted sprint run.
type TimeEntry struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Team         Team      `json:"team"`
	SprintNumber int       `json:"sprint_number"`
	Time         float64   `json:"time"`
	SavedAtDate  string    `json:"saved_at_date"`
	SavedAt      time.Time `json:"saved_at_time"`
}

// NewEntry describes a row to insert with an explicit sprint number.
// A zero SavedAt is stamped with the current time by the store.
type NewEntry struct {
	Username     string
	Team         Team
	SprintNumber int
	Time         float64
	SavedAt      time.Time
}

// EditedRow is one row of an edited leaderboard table. ID is nil for rows
// added in the editor.
type EditedRow struct {
	ID           *int64  `json:"id,omitempty"`
	Username     string  `json:"username" validate:"required"`
	SprintNumber int     `json:"sprint_number" validate:"min=1"`
	Time         float64 `json:"time" validate:"gt=0"`
}

// Normalize trims the username and rounds the time to the displayed precision.
func (r EditedRow) Normalize() EditedRow {
	r.Username = strings.TrimSpace(r.Username)
	r.Time = RoundSeconds(r.Time)
	return r
}

// RoundSeconds rounds to two decimals, the precision shown on the board.
func RoundSeconds(v float64) float64 {
	return math.Round(v*100) / 100
}

// Today returns the saved_at_date value for the given instant.
func Today(now time.Time) string {
	return now.In(Zone).Format(DateLayout)
}
