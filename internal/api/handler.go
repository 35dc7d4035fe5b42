// Package api provides the non-chat HTTP handlers and the JSON request/response helpers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Decode errors.
var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrInvalidBody  = errors.New("invalid request body")
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DecodeJSON reads at most maxBytes of JSON from the request body into v. An empty
// body is accepted when allowEmpty is set and leaves v untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, allowEmpty bool, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case allowEmpty && errors.Is(err, io.EOF):
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}
	return ErrInvalidBody
}

// WriteDecodeError maps a DecodeJSON error to its HTTP response.
func WriteDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, ErrBodyTooLarge.Error())
		return
	}
	Error(w, http.StatusBadRequest, ErrInvalidBody.Error())
}
