package leaderboard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/verte-zerg/sprintwatch/internal/model"
)

// ExportHeader is the column order of WriteCSV and ReadEditedCSV.
var ExportHeader = []string{"id", "username", "team", "sprint_number", "time", "saved_at_date"}

// WriteCSV writes entries with times rounded to two decimals.
func WriteCSV(w io.Writer, entries []model.TimeEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.Username,
			string(e.Team),
			strconv.Itoa(e.SprintNumber),
			strconv.FormatFloat(model.RoundSeconds(e.Time), 'f', -1, 64),
			e.SavedAtDate,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadEditedCSV parses an edited export. Only rows whose team column matches
// team and whose saved_at_date is today are returned; blank columns match.
// A blank id marks a new row.
func ReadEditedCSV(r io.Reader, team model.Team, today string) ([]model.EditedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"username", "sprint_number", "time"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []model.EditedRow
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if t := field(record, "team"); t != "" {
			parsed, err := model.ParseTeam(t)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if parsed != team {
				continue
			}
		}
		if d := field(record, "saved_at_date"); d != "" && d != today {
			continue
		}
		row := model.EditedRow{Username: field(record, "username")}
		if row.Username == "" {
			return nil, fmt.Errorf("line %d: username is required", line)
		}
		if idStr := field(record, "id"); idStr != "" {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid id %q", line, idStr)
			}
			row.ID = &id
		}
		sprint, err := parseSprint(field(record, "sprint_number"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row.SprintNumber = sprint
		secs, err := strconv.ParseFloat(field(record, "time"), 64)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("line %d: invalid time %q", line, field(record, "time"))
		}
		row.Time = secs
		rows = append(rows, row)
	}
	return rows, nil
}

// parseSprint accepts "3" as well as "3.0", which spreadsheets tend to emit.
func parseSprint(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil && n >= 1 {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid sprint_number %q", s)
	}
	return int(f), nil
}
