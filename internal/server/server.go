// Package server exposes the stopwatch and leaderboard over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verte-zerg/sprintwatch/internal/auth"
	"github.com/verte-zerg/sprintwatch/internal/leaderboard"
	"github.com/verte-zerg/sprintwatch/internal/model"
	"github.com/verte-zerg/sprintwatch/internal/session"
)

// Store is the record store as used by the API.
type Store interface {
	leaderboard.Store
	leaderboard.Reader
	session.Saver
	DeleteByUsernameAndSprint(ctx context.Context, username string, sprintNumber int) (int64, error)
}

// Users is the credential/session provider.
type Users interface {
	Authenticate(username, password string) (auth.Identity, auth.Status, error)
	Lookup(username string) (auth.Identity, error)
	Users() []auth.Identity
	SetTeam(username string, team model.Team) error
}

// Tokens signs and verifies bearer tokens.
type Tokens interface {
	Issue(id auth.Identity) (string, time.Time, error)
	Parse(token string) (string, error)
}

// Server holds the API dependencies.
type Server struct {
	store      Store
	users      Users
	tokens     Tokens
	watches    *session.Registry
	reconciler *leaderboard.Reconciler
	validate   *validator.Validate
}

// New constructs a Server.
func New(store Store, users Users, tokens Tokens, watches *session.Registry) *Server {
	if watches == nil {
		watches = session.NewRegistry(nil)
	}
	return &Server{
		store:      store,
		users:      users,
		tokens:     tokens,
		watches:    watches,
		reconciler: leaderboard.NewReconciler(store),
		validate:   validator.New(),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Head("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.tokens, s.users))

		r.Get("/me", s.handleMe)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/stopwatch", s.handleStopwatch)
		r.Post("/stopwatch/start", s.handleStart)
		r.Post("/stopwatch/stop", s.handleStop)
		r.Post("/stopwatch/toggle", s.handleToggle)
		r.Post("/stopwatch/reset", s.handleReset)
		r.Post("/stopwatch/save", s.handleSave)

		r.Get("/leaderboard", s.handleLeaderboard)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.tokens, s.users))
		r.Use(AdminMiddleware())

		r.Get("/times", s.handleListTimes)
		r.Get("/times.csv", s.handleExportCSV)
		r.Delete("/times", s.handleDeleteRun)
		r.Put("/leaderboard", s.handleUpdateLeaderboard)
		r.Get("/users", s.handleListUsers)
		r.Put("/users/{username}/team", s.handleSetTeam)
	})

	return r
}
