package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error envelope. Description repeats the
// human-readable message, status carries the HTTP code.
type ErrorResponse struct {
	Description string `json:"description"`
	Status      int    `json:"status"`
	Message     string `json:"message"`
}

// SuccessResponse is the envelope for operations with no payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RespondJSON writes v with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes the error envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Description: message,
		Status:      status,
		Message:     message,
	})
}

// RespondSuccess writes a 200 success envelope.
func RespondSuccess(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message})
}
