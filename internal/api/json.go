package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errResponse is the uniform error payload for every API failure.
type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeJSON encodes v as the response body. Encoding failures are logged
// only; the status line has already gone out by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", slog.String("error", err.Error()))
	}
}
