package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/apperrors"
	"github.com/medialert/medialert-engine/pkg/logging"
)

// ApiResponse wraps successful payloads.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// DeleteResponse reports what a delete request actually did. Prevented
// deletes are successful requests with Deleted=false.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
	Record  any  `json:"record,omitempty"`
}

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

// writeData writes a successful ApiResponse, logging encoding failures.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response, logging encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// statusForError maps a service error to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrLastAdmin):
		return http.StatusConflict, "last_admin"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrInvalidRole):
		return http.StatusBadRequest, "invalid_role"
	case errors.Is(err, apperrors.ErrInvalidStatus):
		return http.StatusBadRequest, "invalid_status"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrInactiveUser):
		return http.StatusUnprocessableEntity, "inactive_user"
	case errors.Is(err, apperrors.ErrMedicationUnavailable):
		return http.StatusUnprocessableEntity, "medication_unavailable"
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusForbidden, "invalid_credentials"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError maps domain errors to responses. Unexpected errors are
// logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string, logger *zap.Logger) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("operation", op),
			zap.String("path", r.URL.Path),
			zap.String("error", logging.SanitizeError(err)))
		writeError(w, status, code, "Failed to "+op, logger)
		return
	}
	writeError(w, status, code, err.Error(), logger)
}
