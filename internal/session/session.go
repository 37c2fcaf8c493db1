// Package session ties a user's stopwatch to the record store.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/model"
	"github.com/verte-zerg/sprintwatch/internal/observability"
	"github.com/verte-zerg/sprintwatch/internal/stopwatch"
)

// Saver persists a finished run.
type Saver interface {
	Save(ctx context.Context, username string, team model.Team, seconds float64) (model.TimeEntry, error)
}

// Save stores the stopwatch's elapsed time for id and clears the stopwatch.
// Notices from the stopwatch are returned unchanged and nothing is written.
func Save(ctx context.Context, st Saver, id auth.Identity, sw *stopwatch.Stopwatch) (model.TimeEntry, error) {
	secs, err := sw.CheckSave()
	if err != nil {
		var notice *stopwatch.Notice
		if errors.As(err, &notice) {
			observability.RecordNotice(notice.Reason)
		}
		return model.TimeEntry{}, err
	}
	entry, err := st.Save(ctx, id.Username, id.Team, secs)
	if err != nil {
		return model.TimeEntry{}, err
	}
	observability.RecordSave(string(id.Team))
	sw.MarkSaved()
	return entry, nil
}

// Registry keeps one stopwatch per username for the HTTP API.
type Registry struct {
	now func() time.Time

	mu      sync.Mutex
	watches map[string]*entry
}

type entry struct {
	mu sync.Mutex
	sw *stopwatch.Stopwatch
}

// NewRegistry constructs a Registry. A nil clock means time.Now.
func NewRegistry(now func() time.Time) *Registry {
	return &Registry{now: now, watches: map[string]*entry{}}
}

// With runs fn with exclusive access to the user's stopwatch.
func (r *Registry) With(username string, fn func(sw *stopwatch.Stopwatch) error) error {
	r.mu.Lock()
	e, ok := r.watches[username]
	if !ok {
		e = &entry{sw: stopwatch.New(r.now)}
		r.watches[username] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sw)
}

// Forget drops the user's stopwatch, e.g. on logout.
func (r *Registry) Forget(username string) {
	r.mu.Lock()
	delete(r.watches, username)
	r.mu.Unlock()
}
