// Package utils holds the small JSON and hex helpers shared by the HTTP
// handlers and both ends of the packet transport.
package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// WriteError sends the standard error envelope: the HTTP status text plus a
// caller-supplied message ("no measurements recorded", "invalid profile_id").
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{
		Error:   http.StatusText(status),
		Message: msg,
	})
}
