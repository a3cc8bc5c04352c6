package server

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Skryldev/doc-intake/errors"
)

type response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	DriveLink string `json:"driveLink,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), response{
		Success:   false,
		Error:     message(err),
		ErrorKind: apperrors.Kind(err),
	})
}

// message is the human-readable error text.  Client errors say what was
// wrong; server errors name the failed stage only.
func message(err error) string {
	switch apperrors.Kind(err) {
	case apperrors.KindValidation, apperrors.KindAuth, apperrors.KindMethod:
		var e *apperrors.Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return err.Error()
	case apperrors.KindTransform:
		return "image processing failed"
	case apperrors.KindStorage:
		return "file upload failed"
	case apperrors.KindRepository:
		return "record store unavailable"
	}
	return "internal error"
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, apperrors.New(apperrors.CategoryMethod, "server.route", apperrors.ErrMethodNotAllowed))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, response{Success: false, Error: "not found"})
}
