// Package httpx holds the JSON request/response helpers shared by all HTTP
// handlers. Every error response uses the same envelope so clients can switch
// on a stable machine-readable code.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Stable error codes returned in the envelope.
const (
	CodeUnauthorized      = "unauthorized"
	CodeTokenExpired      = "token_expired"
	CodeInvalidCode       = "invalid_code"
	CodeWeakPassword      = "weak_password"
	CodeConflict          = "conflict"
	CodeNotFound          = "not_found"
	CodeForbidden         = "forbidden"
	CodeBadRequest        = "bad_request"
	CodeDependencyFailure = "dependency_failure"
)

// ErrorEnvelope is the standard error response shape.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// ReadJSON decodes the request body into v, enforcing a size limit.
func ReadJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}
