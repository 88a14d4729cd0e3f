package web

// errors.go renders every error as JSON:
//
//	{"detail": "...", "code": "SES001", "action": "...", "errors": [...], "files": [...]}
//
// The technical error is logged with the request id; clients only see the
// mapped message from core.MapError. Field errors of an invalid cleaning
// config and the files that tripped the severity gate are passed through
// since they are built from user input.

import (
	"context"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/session"
	"github.com/JonMunkholm/csvclean/internal/web/middleware"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Detail string                `json:"detail"`
	Code   string                `json:"code,omitempty"`
	Action string                `json:"action,omitempty"`
	Errors []cleaning.FieldError `json:"errors,omitempty"`
	Files  []string              `json:"files,omitempty"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case cleaning.IsConfigError(err), errors.Is(err, cleaning.ErrUnrecognizedCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCriticalDataset):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoFiles), errors.Is(err, core.ErrNoValidFiles), errors.Is(err, core.ErrTooManyFiles):
		return http.StatusBadRequest
	case errors.Is(err, middleware.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyRequests), errors.Is(err, session.ErrStoreFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError responds with the status statusFor picks.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes its user-facing JSON form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	ue := core.NewUserError(err)
	msg := ue.User

	log := logging.FromContext(r.Context()).Warn
	if status >= http.StatusInternalServerError {
		log = logging.FromContext(r.Context()).Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", msg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	resp := ErrorResponse{Detail: msg.Message, Code: msg.Code, Action: msg.Action}
	var ce *cleaning.ConfigError
	if errors.As(err, &ce) {
		resp.Errors = ce.Errors
	}
	var critical *core.CriticalError
	if errors.As(err, &critical) {
		resp.Files = critical.Files
		resp.Detail = critical.Error()
	}
	writeJSON(w, status, resp)
}

// respondBadRequest reports a malformed request. The detail is returned
// verbatim.
func respondBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "detail", detail)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: detail})
}
