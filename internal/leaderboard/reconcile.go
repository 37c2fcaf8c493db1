// Package leaderboard builds the daily board and syncs admin edits back to storage.
package leaderboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/verte-zerg/sprintwatch/internal/model"
)

// Store is the subset of the record store the reconciler writes through.
type Store interface {
	LoadTeamToday(ctx context.Context, team model.Team) ([]model.TimeEntry, error)
	Insert(ctx context.Context, e model.NewEntry) (int64, error)
	Update(ctx context.Context, id int64, username string, sprintNumber int, seconds float64) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// Result counts the writes performed for one team.
type Result struct {
	Team      model.Team `json:"team"`
	Deleted   []int64    `json:"deleted"`
	Inserted  []int64    `json:"inserted"`
	Updated   []int64    `json:"updated"`
	Unchanged int        `json:"unchanged"`
	// Reclassified counts edited rows whose id was not in today's snapshot
	// and were inserted as new rows.
	Reclassified int `json:"reclassified"`
}

// Writes is the number of rows deleted, inserted or updated.
func (r Result) Writes() int {
	return len(r.Deleted) + len(r.Inserted) + len(r.Updated)
}

// Reconciler applies an edited copy of a team's today rows to the store.
type Reconciler struct {
	store Store
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile deletes stored rows missing from edited, inserts rows without a
// known id and updates rows whose fields changed. Each write commits on its
// own, so a failure part way leaves the earlier writes in place.
func (r *Reconciler) Reconcile(ctx context.Context, team model.Team, edited []model.EditedRow) (Result, error) {
	res := Result{Team: team}

	original, err := r.store.LoadTeamToday(ctx, team)
	if err != nil {
		return res, fmt.Errorf("failed to load %s snapshot: %w", team, err)
	}
	byID := make(map[int64]model.TimeEntry, len(original))
	for _, e := range original {
		byID[e.ID] = e
	}

	keep := make(map[int64]struct{}, len(edited))
	for _, row := range edited {
		if row.ID != nil {
			keep[*row.ID] = struct{}{}
		}
	}

	var toDelete []int64
	for _, e := range original {
		if _, ok := keep[e.ID]; !ok {
			toDelete = append(toDelete, e.ID)
		}
	}
	if len(toDelete) > 0 {
		if _, err := r.store.DeleteByIDs(ctx, toDelete); err != nil {
			return res, fmt.Errorf("failed to delete %s rows: %w", team, err)
		}
		res.Deleted = toDelete
	}

	for _, row := range edited {
		row = row.Normalize()
		if row.ID == nil {
			id, err := r.insert(ctx, team, row)
			if err != nil {
				return res, err
			}
			res.Inserted = append(res.Inserted, id)
			continue
		}
		stored, ok := byID[*row.ID]
		if !ok {
			id, err := r.insert(ctx, team, row)
			if err != nil {
				return res, err
			}
			res.Inserted = append(res.Inserted, id)
			res.Reclassified++
			continue
		}
		if !changed(stored, row) {
			res.Unchanged++
			continue
		}
		if err := r.store.Update(ctx, stored.ID, row.Username, row.SprintNumber, row.Time); err != nil {
			return res, fmt.Errorf("failed to update row %d: %w", stored.ID, err)
		}
		res.Updated = append(res.Updated, stored.ID)
	}
	return res, nil
}

// ReconcileAll reconciles each team present in edits independently, in
// model.Teams order. Teams absent from edits are not touched.
func (r *Reconciler) ReconcileAll(ctx context.Context, edits map[model.Team][]model.EditedRow) ([]Result, error) {
	teams := make([]model.Team, 0, len(edits))
	for team := range edits {
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teamOrder(teams[i]) < teamOrder(teams[j]) })

	results := make([]Result, 0, len(teams))
	for _, team := range teams {
		res, err := r.Reconcile(ctx, team, edits[team])
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Reconciler) insert(ctx context.Context, team model.Team, row model.EditedRow) (int64, error) {
	id, err := r.store.Insert(ctx, model.NewEntry{
		Username:     row.Username,
		Team:         team,
		SprintNumber: row.SprintNumber,
		Time:         row.Time,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s row for %s: %w", team, row.Username, err)
	}
	return id, nil
}

// changed compares at the precision the board displays, so an untouched
// row whose stored time has more decimals is not rewritten.
func changed(stored model.TimeEntry, row model.EditedRow) bool {
	return stored.Username != row.Username ||
		stored.SprintNumber != row.SprintNumber ||
		model.RoundSeconds(stored.Time) != row.Time
}

func teamOrder(t model.Team) int {
	for i, known := range model.Teams {
		if known == t {
			return i
		}
	}
	return len(model.Teams)
}
