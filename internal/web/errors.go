package web

// errors.go turns engine errors into HTTP responses. The technical error is
// logged with the request id; the client gets the mapped user message and
// its code.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form. A zero status is
// derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var structural *core.StructuralError
	switch {
	case errors.Is(err, core.ErrNoActiveRun):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRunActive),
		errors.Is(err, core.ErrChunkInProgress),
		errors.Is(err, core.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.As(err, &structural):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
