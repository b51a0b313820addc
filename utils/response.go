package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Error   bool        `json:"error"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// RespondJSON writes a successful envelope.
func RespondJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// RespondError writes a failed envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Error: true, Message: message})
}

// RespondInternal logs err and hides it from the client.
func RespondInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.ErrorContext(r.Context(), message,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("err", err),
	)
	RespondError(w, http.StatusInternalServerError, message)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", slog.Any("err", err))
	}
}

// WriteRaw writes v as JSON without the envelope, for callers that dictate their own body.
func WriteRaw(w http.ResponseWriter, status int, v interface{}) {
	writeJSON(w, status, v)
}
