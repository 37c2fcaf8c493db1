package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/sprintwatch/internal/auth"
)

type responseWriter struct {
	http.ResponseWriter
	body   *bytes.Buffer
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status >= http.StatusBadRequest {
		rw.body.Write(b)
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// LoggingMiddleware logs one line per request; error responses are logged
// at ERROR with their body.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}

		next.ServeHTTP(rw, r)

		msg := fmt.Sprintf("%s %s - %d %dB in %s", r.Method, r.RequestURI, rw.status, rw.size, time.Since(start))
		if rw.status >= http.StatusInternalServerError {
			slog.Error(msg, "response_body", rw.body.String())
		} else if rw.status >= http.StatusBadRequest {
			slog.Warn(msg, "response_body", rw.body.String())
		} else {
			slog.Info(msg)
		}
	})
}

// AuthMiddleware resolves the bearer token to a fresh identity, so team
// and admin changes apply without re-login.
func AuthMiddleware(tokens Tokens, users Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				respondError(w, http.StatusUnauthorized, codeUnauthorized, "invalid authorization header format")
				return
			}
			username, err := tokens.Parse(parts[1])
			if err != nil {
				respondError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
				return
			}
			id, err := users.Lookup(username)
			if err != nil {
				respondError(w, http.StatusUnauthorized, codeUnauthorized, "unknown user")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// AdminMiddleware rejects callers without the admin flag.
func AdminMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok || !id.IsAdmin {
				respondError(w, http.StatusForbidden, codeForbidden, "forbidden: admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
