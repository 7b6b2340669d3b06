// Package respond writes the JSON bodies shared by the configuration
// service's handlers and middleware.
package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the shape of every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes {error: http.StatusText(status), message}.
func Error(w http.ResponseWriter, status int, message string) {
	ErrorTitle(w, status, http.StatusText(status), message)
}

// ErrorTitle is Error with a title that is not the status text,
// e.g. "Validation Error".
func ErrorTitle(w http.ResponseWriter, status int, title, message string) {
	JSON(w, status, ErrorBody{Error: title, Message: message})
}
