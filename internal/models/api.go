package models

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"` // "visible" | "final" | "error" | "cleared" | "imported"
	Payload interface{} `json:"payload"`
}

type VisibleUpdate struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type TurnError struct {
	SessionID    string `json:"session_id"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	PartialReply string `json:"partial_reply,omitempty"`
}
