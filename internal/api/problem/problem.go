// Package problem writes RFC 7807 problem+json responses.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
)

const contentType = "application/problem+json"

// Problem type URIs.
const (
	TypeBase              = "https://togather.foundation/problems/"
	TypeUnauthenticated   = TypeBase + "unauthenticated"
	TypeForbidden         = TypeBase + "forbidden"
	TypeNotFound          = TypeBase + "not-found"
	TypeEventNotFound     = TypeBase + "event-not-found"
	TypeValidation        = TypeBase + "validation-error"
	TypeRemoteUnavailable = TypeBase + "remote-unavailable"
	TypeRemoteTimeout     = TypeBase + "remote-timeout"
	TypeConflict          = TypeBase + "conflict"
	TypeRateLimited       = TypeBase + "rate-limited"
	TypeServerError       = TypeBase + "server-error"
)

type ProblemDetails struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Errors   map[string]any `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithErrors(errs map[string]any) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

// Write renders a problem and logs it on the request logger: 5xx at error
// level, 4xx at warn. Outside development and test, err is never echoed.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}
	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}
	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteProblem(w, problem)
}

// FromError maps a service failure to its response.
func FromError(w http.ResponseWriter, r *http.Request, err error, env string) {
	status, typ, title := Classify(err)
	var opts []Option
	if status < 500 {
		var ferr *favorites.Error
		if errors.As(err, &ferr) && ferr.Message != "" {
			opts = append(opts, WithDetail(ferr.Message))
		}
	}
	Write(w, r, status, typ, title, err, env, opts...)
}

// Classify returns the status, type and title for err.
func Classify(err error) (int, string, string) {
	switch favorites.KindOf(err) {
	case favorites.KindUnauthenticated:
		return http.StatusUnauthorized, TypeUnauthenticated, "Authentication required"
	case favorites.KindUnauthorized:
		return http.StatusForbidden, TypeForbidden, "Forbidden"
	case favorites.KindNotFound:
		return http.StatusNotFound, TypeNotFound, "List not found"
	case favorites.KindEventNotFound:
		return http.StatusNotFound, TypeEventNotFound, "Event not found"
	case favorites.KindInvalidArgument:
		return http.StatusBadRequest, TypeValidation, "Invalid request"
	case favorites.KindRemoteUnavailable:
		if favorites.IsTimeout(err) {
			return http.StatusGatewayTimeout, TypeRemoteTimeout, "Upstream service timed out"
		}
		return http.StatusBadGateway, TypeRemoteUnavailable, "Upstream service unavailable"
	case favorites.KindConflict:
		return http.StatusConflict, TypeConflict, "Concurrent modification"
	default:
		return http.StatusInternalServerError, TypeServerError, "Server error"
	}
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":%q,\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}
