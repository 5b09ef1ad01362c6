// Package handlers provides the JSON endpoints of the serve command.
package handlers

import (
	"encoding/json"
	"net/http"

	"spmigrate/interfaces/web/presenters"
	"spmigrate/logging"
)

// RenderJSON writes v as a JSON response with the given status.
func RenderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Default().Warn("Failed to encode response", "error", err)
	}
}

// RenderError writes a JSON error body.
func RenderError(w http.ResponseWriter, status int, message string) {
	RenderJSON(w, status, presenters.ErrorView{Error: message})
}
