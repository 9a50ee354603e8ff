package response

import (
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"github.com/evgeniivall/notes-auth-micro/internal/domain"
	"github.com/evgeniivall/notes-auth-micro/internal/logger"
)

var devMode atomic.Bool

// SetDevelopment toggles whether error bodies carry the internal error chain.
func SetDevelopment(on bool) { devMode.Store(on) }

func Development() bool { return devMode.Load() }

// WriteError converts a domain error into a consistent JSON HTTP error response.
// Non-domain errors are treated as internal errors (500) without leaking details.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, "")
}

// WritePanic answers a recovered panic. stack is only exposed in development.
func WritePanic(w http.ResponseWriter, r *http.Request, err error, stack string) {
	writeError(w, r, err, stack)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, stack string) {
	status := http.StatusInternalServerError
	env := Envelope{
		Status:    StatusError,
		Code:      "internal_error",
		Message:   "something went wrong",
		RequestID: RequestIDFromContext(r),
	}

	var de *domain.Error
	if errors.As(err, &de) {
		status = statusFromKind(de.Kind)
		env.Code = de.Code
		env.Message = de.Message
		env.Meta = de.Meta
	}

	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).
			Msg("request failed")
	}

	if devMode.Load() && err != nil {
		env.Error = err.Error()
		if stack == "" && status >= http.StatusInternalServerError {
			stack = string(debug.Stack())
		}
		env.Stack = stack
	}

	WriteJSON(w, status, env)
}

// statusFromKind maps domain error kinds to HTTP status codes.
func statusFromKind(kind domain.ErrKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindInfrastructure:
		return http.StatusServiceUnavailable
	case domain.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
