package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/storage"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// validationError writes a 400 listing the rejected fields.
func validationError(w http.ResponseWriter, ve *journal.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": ve.Error(),
			"type":    "invalid_request_error",
			"fields":  ve.Fields,
		},
	})
}

// serviceError maps a journal or storage error to its HTTP status.
func serviceError(w http.ResponseWriter, err error, action string) {
	var ve *journal.ValidationError
	switch {
	case errors.As(err, &ve):
		validationError(w, ve)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, storage.ErrDuplicateID):
		httpError(w, http.StatusConflict, "conflict", "record id already exists")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to %s: %v", action, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
