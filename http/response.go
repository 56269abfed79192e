package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/userweb"
)

// StatusCode maps an error to the HTTP status reported to the client.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, userweb.ErrUnknownUser),
		errors.Is(err, userweb.ErrNoSite),
		errors.Is(err, userweb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, userweb.ErrPathTraversal):
		return http.StatusForbidden
	case errors.Is(err, userweb.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case isBodyTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, userweb.ErrMalformedBody):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an error page for err. Details stay in the log.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)

	if code >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request error", "path", r.URL.Path, "error", err)
	} else {
		slog.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "error", err)
	}

	var methodErr *userweb.MethodError
	if errors.As(err, &methodErr) && len(methodErr.Allow) > 0 {
		w.Header().Set("Allow", strings.Join(methodErr.Allow, ", "))
	}

	writeErrorPage(w, code)
}
