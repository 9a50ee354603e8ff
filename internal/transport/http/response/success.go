package response

import (
	"encoding/json"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the jsend-style body of every API response.
type Envelope struct {
	Status    string            `json:"status"`
	Results   *int              `json:"results,omitempty"`
	Data      any               `json:"data,omitempty"`
	Message   string            `json:"message,omitempty"`
	Code      string            `json:"code,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`

	// development only
	Error string `json:"error,omitempty"`
	Stack string `json:"stack,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
// It sets Content-Type to application/json; charset=utf-8 if not already set.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 response with {"status":"success","data": ...}.
// A nil data yields just {"status":"success"}.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Data: data})
}

// Created writes a 201 response with {"status":"success","data": ...}.
func Created(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Envelope{Status: StatusSuccess, Data: data})
}

// List writes a 200 response carrying the number of returned items.
func List(w http.ResponseWriter, data any, results int) {
	WriteJSON(w, http.StatusOK, Envelope{Status: StatusSuccess, Results: &results, Data: data})
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
