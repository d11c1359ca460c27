package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusForError maps a service error to an HTTP status by its classification.
func StatusForError(err error) int {
	if errors.Is(err, apperrors.ErrNotFound) {
		return http.StatusNotFound
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindConfiguration, apperrors.KindParse:
		return http.StatusBadRequest
	case apperrors.KindAuthentication:
		return http.StatusUnprocessableEntity
	case apperrors.KindConnectivity, apperrors.KindModelInvocation:
		return http.StatusBadGateway
	case apperrors.KindVault:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError writes err with the status of its kind. Unclassified errors
// are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, err error, fallbackCode, fallbackMessage string, logger *zap.Logger) {
	status := StatusForError(err)

	code, message := fallbackCode, fallbackMessage
	switch {
	case status == http.StatusNotFound:
		code, message = "not_found", logging.SanitizeError(err)
	case status != http.StatusInternalServerError:
		code, message = string(apperrors.KindOf(err)), logging.SanitizeError(err)
	default:
		logger.Error(fallbackMessage, zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
