package web

// errors.go turns service errors into HTTP responses.
//
// Every error is logged server-side with the request ID and mapped through
// core.MapError to a coded message for the client. JSON is the default;
// the HTML report pages get an error alert fragment instead.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/Jobalyzer/internal/core"
	"github.com/JonMunkholm/Jobalyzer/internal/logging"
	"github.com/JonMunkholm/Jobalyzer/internal/web/templates"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to its HTTP status by kind.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	}

	switch core.KindOf(err) {
	case core.ErrEmptyCriteria, core.ErrInvalidCriteria, core.ErrStream:
		return http.StatusBadRequest
	case core.ErrNoData, core.ErrUnknownReport:
		return http.StatusNotFound
	case core.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if status == http.StatusRequestEntityTooLarge {
		msg = core.MapError(errors.New("file too large"))
	}

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "status", status, "code", msg.Code, "error", err)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "code", msg.Code, "error", err)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// wantsHTML is true for the report pages unless the client asks for JSON.
func wantsHTML(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/reports")
}
