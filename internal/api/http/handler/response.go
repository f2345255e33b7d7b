package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

type statusBody struct {
	Status string `json:"status"`
}

// handleError maps service errors to HTTP responses.
func handleError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, statusBody{Status: "invalid_token"})
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrIsDirectory), errors.Is(err, model.ErrInvalidArchiveID):
		writeJSON(w, http.StatusNotFound, statusBody{Status: "not_found"})
	case errors.Is(err, model.ErrStorageFatal):
		log.Error("HTTP handler: archive storage needs attention",
			"alert", true,
			"error", err.Error())
		writeJSON(w, http.StatusInternalServerError, statusBody{Status: "storage_failure"})
	case errors.Is(err, model.ErrImportFailed),
		errors.Is(err, model.ErrExportFailed),
		errors.Is(err, model.ErrRemoteLookupFailed),
		errors.Is(err, model.ErrSSOFailed):
		writeJSON(w, http.StatusBadGateway, statusBody{Status: "federation_failure"})
	default:
		log.Error("HTTP handler: unexpected error",
			"error", err.Error())
		writeJSON(w, http.StatusInternalServerError, statusBody{Status: "internal_error"})
	}
}
