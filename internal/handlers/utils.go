package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/akostadinov/chunchun/internal/accounts"
	"github.com/akostadinov/chunchun/internal/kv"
	"github.com/akostadinov/chunchun/internal/services"
	"github.com/akostadinov/chunchun/types"
	"github.com/sirupsen/logrus"
)

// SessionHeader carries the session id returned by POST /sessions.
const SessionHeader = "X-Session-ID"

const maxLimit = 1000

type contextKey string

const contextSessionKey contextKey = "session"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequireSession resolves the session header and injects the session into
// the request context.
func RequireSession(sessions *services.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(SessionHeader))
			if id == "" {
				writeError(w, http.StatusUnauthorized, "missing session")
				return
			}
			sess, err := sessions.Get(id)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unknown session")
				return
			}
			ctx := context.WithValue(r.Context(), contextSessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) (*services.Session, error) {
	sess, ok := ctx.Value(contextSessionKey).(*services.Session)
	if !ok || sess == nil {
		return nil, errors.New("missing session")
	}
	return sess, nil
}

// parsePositive reads an optional positive integer query parameter. It
// returns fallback when the parameter is absent.
func parsePositive(r *http.Request, name string, fallback, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, errors.New("invalid " + name)
	}
	if value > max {
		value = max
	}
	return value, nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, kv.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, accounts.ErrExhausted), errors.Is(err, kv.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrInvalidArgument), errors.Is(err, services.ErrSelfWatch),
		errors.Is(err, types.ErrMalformedKey):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with the mapped status. Server errors keep
// their detail in the log only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", r.URL.Path).Error(message)
		writeError(w, status, message)
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
