package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// JSONResponse is the envelope of every response body.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError.Code is stable and machine-readable; Fields maps JSON field
// names to validation messages.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

const apiVersion = "v1"

func respond(w http.ResponseWriter, r *http.Request, status int, body JSONResponse) {
	body.Success = status >= 200 && status < 300
	body.Meta = &ResponseMeta{Timestamp: time.Now().UTC(), Version: apiVersion}
	body.RequestID = getRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	respond(w, r, status, JSONResponse{Data: data})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields map[string]string) {
	respond(w, r, status, JSONResponse{Error: &APIError{Code: code, Message: message, Fields: fields}})
}

// getQueryParamInt returns def for an absent parameter and ok=false for a
// malformed one.
func getQueryParamInt(r *http.Request, key string, def int) (n int, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}
