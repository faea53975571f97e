package models

import "verona-backend/internal/conversation"

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	Stream  bool   `json:"stream"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply    string                 `json:"reply"`
	Messages []conversation.Message `json:"messages"`
}

type SessionResponse struct {
	SessionID string                 `json:"session_id"`
	Messages  []conversation.Message `json:"messages"`
}

// StreamEvent is one line of an NDJSON chat stream.
type StreamEvent struct {
	Type    string `json:"type"` // "visible" | "final" | "error"
	Text    string `json:"text"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ChatErrorResponse reports a failed turn. The partial reply, if any, has
// already been committed to the conversation.
type ChatErrorResponse struct {
	Error        APIError               `json:"error"`
	PartialReply string                 `json:"partial_reply,omitempty"`
	Messages     []conversation.Message `json:"messages,omitempty"`
}
