package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/field-tools/pkg/apperrors"
)

// ApiResponse wraps successful JSON responses.
type ApiResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// ApiError is the body of every error response. Partial carries whatever a
// multi-step operation completed before it failed.
type ApiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Partial any    `json:"partial,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ApiError{Error: errorCode, Message: message})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

func writeOK(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// statusForError maps service errors to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrMissingDestinationDisplay):
		return http.StatusUnprocessableEntity, "missing_destination_display"
	case errors.Is(err, apperrors.ErrCrossEntityTypeUnsupported):
		return http.StatusUnprocessableEntity, "cross_entity_type_unsupported"
	case errors.Is(err, apperrors.ErrInvalidDisplayContext):
		return http.StatusUnprocessableEntity, "invalid_display_context"
	case errors.Is(err, apperrors.ErrMissingBundle):
		return http.StatusBadRequest, "missing_bundle"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError writes the response for a failed service call. Server
// errors are logged; client errors are not.
func writeServiceError(w http.ResponseWriter, err error, partial any, logger *zap.Logger) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	}
	if writeErr := WriteJSON(w, status, ApiError{Error: code, Message: err.Error(), Partial: partial}); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
