package api

import (
	"encoding/json"
	"net/http"
)

// Failure is the body every failed request gets: success is always
// false and error carries a human-readable reason.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONFailure writes the failure envelope.
func JSONFailure(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Failure{Success: false, Error: message})
}
