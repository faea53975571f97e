package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"verona-backend/internal/conversation"
	"verona-backend/internal/middleware"
	"verona-backend/internal/models"
	"verona-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func apiError(code, message string, r *http.Request) models.APIError {
	return models.APIError{
		Code:      code,
		Message:   message,
		RequestID: r.Header.Get(middleware.RequestIDHeader),
	}
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{Error: apiError(code, message, r)}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	e := apiError(code, message, r)
	e.Fields = fields
	return models.ErrorResponse{Error: e}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", e.Fields, r))
	case *conversation.InvalidFormatError:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", e.Error(), r))
	case *conversation.InvalidRoleError:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", e.Error(), r))
	case *services.ConflictError:
		writeJSON(w, http.StatusConflict, errorResp("TURN_IN_PROGRESS", e.Message, r))
	case *services.TimeoutError:
		code, msg := services.TurnErrorCode(e)
		writeJSON(w, http.StatusGatewayTimeout, errorResp(code, msg, r))
	case *services.ProviderError:
		code, msg := services.TurnErrorCode(e)
		writeJSON(w, http.StatusBadGateway, errorResp(code, msg, r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return uuid.Nil, false
	}
	return id, true
}
