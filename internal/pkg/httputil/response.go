package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ignite/mailmerge/internal/pkg/logger"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error  string `json:"error"`
	Result any    `json:"result,omitempty"`
}

// MessageResponse is the envelope for successful actions.
type MessageResponse struct {
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("JSON encode error", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Message writes a 200 response with a message and optional result.
func Message(w http.ResponseWriter, msg string, result any) {
	JSON(w, http.StatusOK, MessageResponse{Message: msg, Result: result})
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// ErrorWithResult writes an error that still carries a partial result,
// such as a dispatch tally.
func ErrorWithResult(w http.ResponseWriter, status int, message string, result any) {
	JSON(w, status, ErrorResponse{Error: message, Result: result})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// Conflict writes a 409 error.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, message)
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client (never leak internals).
func InternalError(w http.ResponseWriter, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// DecodeOptional is Decode for endpoints whose body may be omitted; an
// empty body leaves dst untouched.
func DecodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	BadRequest(w, "invalid JSON: "+err.Error())
	return false
}
