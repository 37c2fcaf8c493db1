package tui

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/model"
	"github.com/verte-zerg/sprintwatch/internal/stopwatch"
	"github.com/verte-zerg/sprintwatch/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestModel(t *testing.T) (*Model, *fakeClock, *store.Store) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)}
	st, err := store.Open(filepath.Join(t.TempDir(), "sprintwatch.db"), store.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	id := auth.Identity{Username: "alice", DisplayName: "Alice", Team: model.TeamBlue}
	return NewModel(st, id, stopwatch.New(clock.Now)), clock, st
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestViewShowsEmptyBoard(t *testing.T) {
	m, _, _ := newTestModel(t)
	out := m.View()
	if !containsAll(out, []string{"Stopwatch — Alice", "Time (s)", "Avg Time (s)", "0.00", "No times saved yet."}) {
		t.Fatalf("view missing expected segments:\n%s", out)
	}
}

func TestSaveWhileRunningShowsNotice(t *testing.T) {
	m, clock, _ := newTestModel(t)
	if _, cmd := m.Update(key(" ")); cmd == nil {
		t.Fatalf("expected tick to be scheduled on start")
	}
	clock.now = clock.now.Add(3 * time.Second)
	m.Update(key("s"))
	if m.statusKind != statusWarning || m.status != stopwatch.ErrRunning.Message {
		t.Fatalf("unexpected status %d %q", m.statusKind, m.status)
	}
}

func TestSaveStoresTimeAndRefreshesBoard(t *testing.T) {
	m, clock, st := newTestModel(t)
	m.Update(key(" "))
	clock.now = clock.now.Add(12340 * time.Millisecond)
	if _, cmd := m.Update(key(" ")); cmd != nil {
		t.Fatalf("stopping must not schedule a tick")
	}
	m.Update(key("s"))
	if m.statusKind != statusSuccess {
		t.Fatalf("expected success, got %q", m.status)
	}
	if m.sw.State() != stopwatch.Idle || m.sw.Seconds() != 0 {
		t.Fatalf("expected stopwatch cleared after save")
	}
	entries, err := st.LoadAll(t.Context())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alice" || entries[0].Team != model.TeamBlue {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if m.board.Empty || math.Abs(m.board.UserAverage-12.34) > 1e-6 {
		t.Fatalf("board not refreshed: %+v", m.board)
	}
	if !strings.Contains(m.View(), "Saved time successfully!") {
		t.Fatalf("expected success message in view")
	}
}

func TestSaveWithoutStartShowsNotice(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Update(key("s"))
	if m.statusKind != statusWarning || m.status != stopwatch.ErrNotStarted.Message {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestStaleTickIsDropped(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.Update(key(" "))
	stale := tickMsg{id: m.tickID}
	m.Update(key("r"))
	if _, cmd := m.Update(stale); cmd != nil {
		t.Fatalf("stale tick must not reschedule")
	}
}

func TestTabCyclesTableFocus(t *testing.T) {
	m, _, st := newTestModel(t)
	for _, e := range []model.NewEntry{
		{Username: "alice", Team: model.TeamBlue, SprintNumber: 1, Time: 10},
		{Username: "bob", Team: model.TeamWhite, SprintNumber: 1, Time: 11},
	} {
		if _, err := st.Insert(t.Context(), e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	m.Update(key("ctrl+r"))
	if len(m.tables) != 2 || m.focus != 0 {
		t.Fatalf("expected two tables focused on first, got %d/%d", len(m.tables), m.focus)
	}
	m.Update(key("tab"))
	if m.focus != 1 || !m.tables[1].Focused() || m.tables[0].Focused() {
		t.Fatalf("expected focus on second table")
	}
	m.Update(key("tab"))
	if m.focus != 0 {
		t.Fatalf("expected focus to wrap")
	}
	if !containsAll(m.View(), []string{"Blue Team Time", "White Team Time", "bob", "11.00"}) {
		t.Fatalf("view missing tables:\n%s", m.View())
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
