// Package store handles SQLite persistence of saved sprint times.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/sprintwatch/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrDatabaseMissing is returned when MustExist is set and the file is absent.
var ErrDatabaseMissing = errors.New("database file does not exist")

// Store wraps SQLite access for the times table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures Open.
type Option func(*options)

type options struct {
	mustExist bool
	now       func() time.Time
}

// MustExist makes Open fail instead of creating a blank database.
func MustExist() Option {
	return func(o *options) { o.mustExist = true }
}

// WithClock overrides the clock used for "today" and save timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// column is one column of the target schema. Columns added after the first
// release are applied with ALTER TABLE when missing.
type column struct {
	name string
	decl string
}

var targetColumns = []column{
	{"username", "TEXT NOT NULL DEFAULT ''"},
	{"team", "TEXT NOT NULL DEFAULT ''"},
	{"sprint_number", "INTEGER NOT NULL DEFAULT 1"},
	{"time", "REAL NOT NULL DEFAULT 0"},
	{"saved_at_date", "TEXT NOT NULL DEFAULT ''"},
	{"saved_at_time", "TEXT NOT NULL DEFAULT ''"},
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mustExist {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, path)
			}
			return nil, err
		}
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: o.now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS times (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			team TEXT NOT NULL,
			sprint_number INTEGER NOT NULL,
			time REAL NOT NULL,
			saved_at_date TEXT NOT NULL,
			saved_at_time TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	existing, err := s.columns("times")
	if err != nil {
		return err
	}
	for _, col := range targetColumns {
		if _, ok := existing[col.name]; ok {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE times ADD COLUMN %s %s`, col.name, col.decl)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_times_user_date ON times(username, saved_at_date);`,
		`CREATE INDEX IF NOT EXISTS idx_times_team_date ON times(team, saved_at_date);`,
	}
	for _, stmt := range indexes {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) columns(table string) (map[string]struct{}, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	cols := map[string]struct{}{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// Today returns the current saved_at_date partition key.
func (s *Store) Today() string {
	return model.Today(s.now())
}

// NextSprintNumber returns one more than the user's highest sprint number
// today, or 1 when the user has no runs today.
func (s *Store) NextSprintNumber(ctx context.Context, username string) (int, error) {
	return s.nextSprintNumber(ctx, username, s.Today())
}

func (s *Store) nextSprintNumber(ctx context.Context, username, date string) (int, error) {
	var maxSprint sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sprint_number) FROM times WHERE username = ? AND saved_at_date = ?`,
		strings.TrimSpace(username), date,
	).Scan(&maxSprint)
	if err != nil {
		return 0, err
	}
	if !maxSprint.Valid {
		return 1, nil
	}
	return int(maxSprint.Int64) + 1, nil
}

// Save stores a stopwatch run with the next sprint number for the user.
// NextSprintNumber and the insert are not serialized against other writers.
func (s *Store) Save(ctx context.Context, username string, team model.Team, seconds float64) (model.TimeEntry, error) {
	username = strings.TrimSpace(username)
	savedAt := s.now().In(model.Zone)
	sprint, err := s.nextSprintNumber(ctx, username, savedAt.Format(model.DateLayout))
	if err != nil {
		return model.TimeEntry{}, err
	}
	id, err := s.Insert(ctx, model.NewEntry{
		Username:     username,
		Team:         team,
		SprintNumber: sprint,
		Time:         seconds,
		SavedAt:      savedAt,
	})
	if err != nil {
		return model.TimeEntry{}, err
	}
	return model.TimeEntry{
		ID:           id,
		Username:     username,
		Team:         team,
		SprintNumber: sprint,
		Time:         seconds,
		SavedAtDate:  savedAt.Format(model.DateLayout),
		SavedAt:      savedAt,
	}, nil
}

// Insert stores a row with a caller-supplied sprint number.
func (s *Store) Insert(ctx context.Context, e model.NewEntry) (int64, error) {
	savedAt := e.SavedAt
	if savedAt.IsZero() {
		savedAt = s.now()
	}
	savedAt = savedAt.In(model.Zone)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO times (username, team, sprint_number, time, saved_at_date, saved_at_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(e.Username),
		string(e.Team),
		e.SprintNumber,
		e.Time,
		savedAt.Format(model.DateLayout),
		savedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update rewrites username, sprint number and time of a row. Team and id
// are left untouched.
func (s *Store) Update(ctx context.Context, id int64, username string, sprintNumber int, seconds float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE times SET username = ?, sprint_number = ?, time = ? WHERE id = ?`,
		strings.TrimSpace(username), sprintNumber, seconds, id,
	)
	return err
}

// DeleteByUsernameAndSprint deletes every row matching the pair.
func (s *Store) DeleteByUsernameAndSprint(ctx context.Context, username string, sprintNumber int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM times WHERE username = ? AND sprint_number = ?`,
		strings.TrimSpace(username), sprintNumber,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByIDs deletes the given rows. An empty slice is a no-op.
func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM times WHERE id IN (%s)`, strings.Join(placeholders, ","))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LoadAll returns every row, fastest first.
func (s *Store) LoadAll(ctx context.Context) ([]model.TimeEntry, error) {
	return s.query(ctx, `SELECT id, username, team, sprint_number, time, saved_at_date, saved_at_time
		FROM times
		ORDER BY time ASC, id ASC`)
}

// LoadTeamToday returns today's rows for a team in insertion order.
func (s *Store) LoadTeamToday(ctx context.Context, team model.Team) ([]model.TimeEntry, error) {
	return s.query(ctx, `SELECT id, username, team, sprint_number, time, saved_at_date, saved_at_time
		FROM times
		WHERE team = ? AND saved_at_date = ?
		ORDER BY id ASC`, string(team), s.Today())
}

// LoadUserToday returns today's rows for a user in insertion order.
func (s *Store) LoadUserToday(ctx context.Context, username string) ([]model.TimeEntry, error) {
	return s.query(ctx, `SELECT id, username, team, sprint_number, time, saved_at_date, saved_at_time
		FROM times
		WHERE username = ? AND saved_at_date = ?
		ORDER BY id ASC`, strings.TrimSpace(username), s.Today())
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]model.TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.TimeEntry
	for rows.Next() {
		var e model.TimeEntry
		var team, savedAt string
		if err := rows.Scan(&e.ID, &e.Username, &team, &e.SprintNumber, &e.Time, &e.SavedAtDate, &savedAt); err != nil {
			return nil, err
		}
		e.Team = model.Team(team)
		if savedAt != "" {
			parsed, err := time.Parse(time.RFC3339Nano, savedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse saved_at_time of row %d: %w", e.ID, err)
			}
			e.SavedAt = parsed
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
