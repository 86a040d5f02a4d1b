package middleware

import (
	"encoding/json"
	"net/http"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	type body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error     body   `json:"error"`
		RequestID string `json:"requestId"`
	}{
		Error:     body{Code: code, Message: message, Details: details},
		RequestID: RequestIDFromContext(r.Context()),
	})
}
