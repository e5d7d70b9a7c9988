// Package apierror renders errors as JSON responses with the status codes
// clients rely on.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jw6ventures/habitplanner/internal/habits"
	"github.com/jw6ventures/habitplanner/internal/store"
)

// ErrUnauthorized is returned when no valid identity accompanies a request.
var ErrUnauthorized = errors.New("not authorized")

// ErrBadRequest marks malformed input that never reached validation, such as
// an unparsable body or path parameter.
var ErrBadRequest = errors.New("bad request")

// Response is the body of every error reply.
type Response struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

var (
	errRequired  = errors.New("is required")
	errTooLong   = errors.New("is too long")
	errNotOneOf  = errors.New("is not an allowed value")
	errBadFormat = errors.New("has an invalid format")
)

var tagMessages = map[string]error{
	"required": errRequired,
	"max":      errTooLong,
	"oneof":    errNotOneOf,
	"hexcolor": errBadFormat,
	"datetime": errBadFormat,
}

// Status maps an error onto its HTTP status code.
func Status(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, habits.ErrValidation), errors.Is(err, ErrBadRequest), errors.As(err, &verrs):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Write logs err and sends the matching JSON error. Server errors are
// reported to the client with a generic message only.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := Status(err)
	requestID := middleware.GetReqID(r.Context())
	resp := Response{RequestID: requestID}

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}

	switch status {
	case http.StatusInternalServerError:
		log.Error("request failed", fields...)
		resp.Error = "internal server error"
	case http.StatusBadRequest:
		log.Warn("bad request", fields...)
		resp.Error = err.Error()
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Error = "validation failed"
			resp.Fields = FieldErrors(verrs)
		}
	case http.StatusNotFound:
		log.Debug("not found", fields...)
		resp.Error = "habit not found"
	case http.StatusConflict:
		log.Warn("conflict", fields...)
		resp.Error = "habit was modified concurrently, retry the request"
	case http.StatusUnauthorized:
		log.Info("unauthorized", fields...)
		resp.Error = "not authorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="habitplanner"`)
	}

	WriteJSON(w, status, resp)
}

// FieldErrors converts validator errors into a field -> message map keyed by
// the JSON field name.
func FieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		msg := fmt.Sprintf("%s is invalid", e.Field())
		if v, ok := tagMessages[e.Tag()]; ok {
			msg = fmt.Sprintf("%s %s", e.Field(), v)
		}
		out[e.Field()] = msg
	}
	return out
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
