// Package stopwatch tracks elapsed time for one interactive session.
package stopwatch

import "time"

// TickInterval is how often a display should re-read Elapsed while running.
const TickInterval = 100 * time.Millisecond

// State is the stopwatch phase.
type State int

// Stopwatch phases.
const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Notice is a recoverable, user-facing rejection of a save attempt.
type Notice struct {
	Reason  string
	Message string
}

func (n *Notice) Error() string {
	return n.Message
}

// Save rejections.
var (
	ErrRunning    = &Notice{Reason: "running", Message: "You need to stop the stopwatch first."}
	ErrNotStarted = &Notice{Reason: "not_started", Message: "You need to start the stopwatch first."}
)

// Stopwatch is the per-session state machine. It is not safe for
// concurrent use; callers that share one must serialize access.
type Stopwatch struct {
	now     func() time.Time
	state   State
	elapsed time.Duration
	since   time.Time
}

// New returns an idle stopwatch. A nil clock means time.Now.
func New(now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

// State reports the current phase.
func (s *Stopwatch) State() State {
	return s.state
}

// Running reports whether time is accruing.
func (s *Stopwatch) Running() bool {
	return s.state == Running
}

// Start begins or resumes accruing time. Elapsed time from a previous stop
// is kept.
func (s *Stopwatch) Start() {
	if s.state == Running {
		return
	}
	s.since = s.now().Add(-s.elapsed)
	s.state = Running
}

// Stop freezes the elapsed time.
func (s *Stopwatch) Stop() {
	if s.state != Running {
		return
	}
	s.elapsed = s.now().Sub(s.since)
	s.since = time.Time{}
	s.state = Stopped
}

// Toggle starts an idle or stopped stopwatch and stops a running one.
func (s *Stopwatch) Toggle() {
	if s.state == Running {
		s.Stop()
		return
	}
	s.Start()
}

// Reset returns to Idle with zero elapsed time.
func (s *Stopwatch) Reset() {
	s.state = Idle
	s.elapsed = 0
	s.since = time.Time{}
}

// Elapsed returns the accumulated time, recomputed on every call while running.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.state == Running {
		s.elapsed = s.now().Sub(s.since)
	}
	return s.elapsed
}

// Seconds is Elapsed in fractional seconds.
func (s *Stopwatch) Seconds() float64 {
	return s.Elapsed().Seconds()
}

// Label is the text of the start/stop button.
func (s *Stopwatch) Label() string {
	if s.state == Running {
		return "⏸️ Stop"
	}
	return "▶️ Start"
}

// CheckSave returns the seconds to save, or a *Notice when saving is not
// allowed in the current state.
func (s *Stopwatch) CheckSave() (float64, error) {
	if s.state == Running {
		return 0, ErrRunning
	}
	secs := s.Seconds()
	if secs <= 0 {
		return 0, ErrNotStarted
	}
	return secs, nil
}

// MarkSaved clears the elapsed time after a successful save.
func (s *Stopwatch) MarkSaved() {
	s.Reset()
}
