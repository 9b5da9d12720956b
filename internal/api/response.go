package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"PhishSim/internal/models"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func success(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "Success"
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: message, Data: data})
}

func fail(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, envelope{Status: "error", Message: message, Details: details})
}

// failErr maps model sentinel errors onto HTTP statuses.
func failErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrNotFound):
		fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, models.ErrConflict):
		fail(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, models.ErrOperation):
		fail(w, http.StatusInternalServerError, err.Error(), nil)
	default:
		fail(w, http.StatusInternalServerError, "internal error", nil)
	}
}
