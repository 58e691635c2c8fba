package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// maxBodyBytes caps every JSON request body
const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON request body into v, refusing bodies over
// maxBodyBytes. Errors are ready to pass to WriteError.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return NewInvalidRequestError("request body too large")
		}
		return NewInvalidRequestError("invalid request body")
	}
	return nil
}
