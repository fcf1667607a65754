package middleware

import (
	"encoding/json"
	"net/http"
)

// respondError mirrors the handler error envelope so middleware rejections
// look the same as handler ones.
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Description string `json:"description"`
		Status      int    `json:"status"`
		Message     string `json:"message"`
	}{Description: message, Status: status, Message: message})
}
