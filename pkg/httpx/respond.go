// Package httpx holds the JSON error envelope shared by the HTTP handlers.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/apperr"
	"github.com/go-chi/render"
)

// Mapping binds a sentinel error to an HTTP status.
type Mapping struct {
	Err    error
	Status int
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// WriteError renders err. Identity failures map to 401/403, then mappings are
// tried in order, then transient errors map to 503. Anything else is logged
// and reported as 500. Transient errors are flagged retryable whatever their
// status.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, mappings ...Mapping) {
	status := StatusOf(err, mappings...)
	body := errorBody{Error: err.Error(), Retryable: apperr.IsTransient(err)}

	switch status {
	case http.StatusServiceUnavailable:
		body.Retryable = true
		log.Warn("transient failure", "path", r.URL.Path, "err", err)
	case http.StatusInternalServerError:
		body.Error = "internal error"
		log.Error("request failed", "path", r.URL.Path, "err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

func StatusOf(err error, mappings ...Mapping) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrForbidden):
		return http.StatusForbidden
	}
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return m.Status
		}
	}
	if apperr.IsTransient(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorBody{Error: msg})
}
