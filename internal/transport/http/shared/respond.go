// Package shared holds the response helpers every HTTP handler uses.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "mvrgate/pkg/domain-errors"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v with the given status. Encoding failures are
// swallowed; the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a coded error to its status and uniform body. Wrapped
// causes never reach the response.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.ToHTTPStatus(err), ErrorResponse{Error: dErrors.MessageOf(err)})
}

// WriteValidationError reports a joined field-validation message.
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: message})
}
