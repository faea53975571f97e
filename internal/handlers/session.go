package handlers

import (
	"fmt"
	"io"
	"net/http"

	"verona-backend/internal/models"
	"verona-backend/internal/services"
)

const maxImportBytes = 4 << 20

type SessionHandler struct {
	chat *services.ChatService
}

func NewSessionHandler(chat *services.ChatService) *SessionHandler {
	return &SessionHandler{chat: chat}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, msgs := h.chat.CreateSession(r.Context())
	writeJSON(w, http.StatusCreated, models.SessionResponse{SessionID: id.String(), Messages: msgs})
}

func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.SessionResponse{SessionID: id.String(), Messages: h.chat.Messages(r.Context(), id)})
}

func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	msgs, err := h.chat.Clear(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionResponse{SessionID: id.String(), Messages: msgs})
}

func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	data, err := h.chat.Export(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="conversation-%s.json"`, id))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *SessionHandler) Import(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("VALIDATION_ERROR", "Conversation file is too large", r))
		return
	}

	msgs, err := h.chat.Import(r.Context(), id, data)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionResponse{SessionID: id.String(), Messages: msgs})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	if err := h.chat.DeleteSession(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}
