package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
	"github.com/verte-zerg/sprintwatch/internal/model"
	"github.com/verte-zerg/sprintwatch/internal/observability"
	"github.com/verte-zerg/sprintwatch/internal/session"
	"github.com/verte-zerg/sprintwatch/internal/stopwatch"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Status    string        `json:"status"`
	Identity  auth.Identity `json:"identity"`
}

type stopwatchResponse struct {
	State   string  `json:"state"`
	Running bool    `json:"running"`
	Elapsed float64 `json:"elapsed"`
	Label   string  `json:"label"`
}

type updateLeaderboardRequest struct {
	Teams map[string][]model.EditedRow `json:"teams" validate:"required,dive,dive"`
}

type setTeamRequest struct {
	Team string `json:"team" validate:"required"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, status, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
		return
	}
	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		s.internalError(w, "issue token", err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, Status: status.String(), Identity: id})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	s.watches.Forget(id.Username)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	respondJSON(w, http.StatusOK, id)
}

func (s *Server) handleStopwatch(w http.ResponseWriter, r *http.Request) {
	s.withStopwatch(w, r, func(*stopwatch.Stopwatch) {})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.withStopwatch(w, r, (*stopwatch.Stopwatch).Start)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.withStopwatch(w, r, (*stopwatch.Stopwatch).Stop)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.withStopwatch(w, r, (*stopwatch.Stopwatch).Toggle)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withStopwatch(w, r, (*stopwatch.Stopwatch).Reset)
}

func (s *Server) withStopwatch(w http.ResponseWriter, r *http.Request, fn func(*stopwatch.Stopwatch)) {
	id, _ := auth.FromContext(r.Context())
	var resp stopwatchResponse
	_ = s.watches.With(id.Username, func(sw *stopwatch.Stopwatch) error {
		fn(sw)
		resp = stopwatchView(sw)
		return nil
	})
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var entry model.TimeEntry
	err := s.watches.With(id.Username, func(sw *stopwatch.Stopwatch) error {
		var err error
		entry, err = session.Save(r.Context(), s.store, id, sw)
		return err
	})
	var notice *stopwatch.Notice
	switch {
	case errors.As(err, &notice):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ErrorDetail{
			Code:    codeNotice,
			Message: notice.Message,
			Reason:  notice.Reason,
		}})
	case err != nil:
		s.internalError(w, "save time", err)
	default:
		respondJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	board, err := leaderboard.Build(r.Context(), s.store, id.Username)
	if err != nil {
		s.internalError(w, "build leaderboard", err)
		return
	}
	respondJSON(w, http.StatusOK, board)
}

func (s *Server) handleListTimes(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.LoadAll(r.Context())
	if err != nil {
		s.internalError(w, "load times", err)
		return
	}
	if entries == nil {
		entries = []model.TimeEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.LoadAll(r.Context())
	if err != nil {
		s.internalError(w, "load times", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="my_times.csv"`)
	if err := leaderboard.WriteCSV(w, entries); err != nil {
		slog.Warn("failed to write CSV export", "error", err)
	}
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	sprint, err := strconv.Atoi(r.URL.Query().Get("sprint_number"))
	if username == "" || err != nil || sprint < 1 {
		respondError(w, http.StatusBadRequest, codeBadRequest, "username and sprint_number >= 1 are required")
		return
	}
	n, err := s.store.DeleteByUsernameAndSprint(r.Context(), username, sprint)
	if err != nil {
		s.internalError(w, "delete run", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"deleted": n,
		"message": fmt.Sprintf("Deleted run #%d.", sprint),
	})
}

func (s *Server) handleUpdateLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req updateLeaderboardRequest
	if !s.decode(w, r, &req) {
		return
	}
	edits := make(map[model.Team][]model.EditedRow, len(req.Teams))
	for name, rows := range req.Teams {
		team, err := model.ParseTeam(name)
		if err != nil {
			respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
			return
		}
		edits[team] = rows
	}
	results, err := s.reconciler.ReconcileAll(r.Context(), edits)
	observability.RecordReconcile(results)
	if err != nil {
		s.internalError(w, "reconcile leaderboard", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Times updated.", "results": results})
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.users.Users())
}

func (s *Server) handleSetTeam(w http.ResponseWriter, r *http.Request) {
	var req setTeamRequest
	if !s.decode(w, r, &req) {
		return
	}
	team, err := model.ParseTeam(req.Team)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	username := chi.URLParam(r, "username")
	if err := s.users.SetTeam(username, team); err != nil {
		if errors.Is(err, auth.ErrUnknownUser) {
			respondError(w, http.StatusNotFound, codeNotFound, err.Error())
			return
		}
		s.internalError(w, "set team", err)
		return
	}
	id, err := s.users.Lookup(username)
	if err != nil {
		s.internalError(w, "lookup user", err)
		return
	}
	respondJSON(w, http.StatusOK, id)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	slog.Error("request failed", "op", op, "error", err)
	respondError(w, http.StatusInternalServerError, codeInternal, "failed to "+op)
}

func stopwatchView(sw *stopwatch.Stopwatch) stopwatchResponse {
	return stopwatchResponse{
		State:   sw.State().String(),
		Running: sw.Running(),
		Elapsed: model.RoundSeconds(sw.Seconds()),
		Label:   sw.Label(),
	}
}
