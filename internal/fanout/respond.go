package fanout

import (
	"encoding/json"
	"net/http"
)

var statusForCode = map[string]int{
	"NOT_FOUND":          http.StatusNotFound,
	"UNAVAILABLE":        http.StatusServiceUnavailable,
	"UNAUTHENTICATED":    http.StatusUnauthorized,
	"RESOURCE_EXHAUSTED": http.StatusTooManyRequests,
	"INTERNAL":           http.StatusInternalServerError,
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// respondError writes the {"error","message"} envelope, mapping the
// taxonomy code to its HTTP status.
func respondError(w http.ResponseWriter, code string, message string) {
	status, ok := statusForCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
