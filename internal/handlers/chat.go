package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"verona-backend/internal/models"
	"verona-backend/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	if req.Stream {
		h.stream(w, r, sessionID, req.Message)
		return
	}

	res, err := h.chat.Send(r.Context(), sessionID, req.Message, false, nil)
	if err != nil {
		writeTurnError(w, r, err, res)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: res.Reply, Messages: res.Messages})
}

// stream answers with NDJSON StreamEvents. Headers go out with the first
// visible update, so failures that happen before any text arrived still get
// a regular JSON error and status code.
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, message string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Streaming unsupported", r))
		return
	}

	enc := json.NewEncoder(w)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}
	emit := func(ev models.StreamEvent) {
		start()
		enc.Encode(ev)
		flusher.Flush()
	}

	res, err := h.chat.Send(r.Context(), sessionID, message, true, func(visible string) {
		emit(models.StreamEvent{Type: "visible", Text: visible})
	})
	if err != nil && !started {
		writeTurnError(w, r, err, res)
		return
	}
	if err != nil {
		code, msg := services.TurnErrorCode(err)
		emit(models.StreamEvent{Type: "error", Text: res.Reply, Code: code, Message: msg})
		return
	}
	emit(models.StreamEvent{Type: "final", Text: res.Reply})
}

// writeTurnError reports a failed turn, including the partial reply the
// service kept when the provider gave up midway.
func writeTurnError(w http.ResponseWriter, r *http.Request, err error, res *services.TurnResult) {
	var status int
	switch err.(type) {
	case *services.ProviderError:
		status = http.StatusBadGateway
	case *services.TimeoutError:
		status = http.StatusGatewayTimeout
	}
	if status == 0 || res == nil {
		handleServiceError(w, r, err)
		return
	}

	code, msg := services.TurnErrorCode(err)
	writeJSON(w, status, models.ChatErrorResponse{
		Error:        apiError(code, msg, r),
		PartialReply: res.Reply,
		Messages:     res.Messages,
	})
}
