package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one conversational turn. Timestamp is advisory and never used
// for ordering. Fields other than role, content and timestamp found in an
// imported record are carried along untouched.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time

	extra map[string]json.RawMessage
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// Equal reports whether two messages carry the same role, content,
// timestamp and opaque fields.
func (m Message) Equal(o Message) bool {
	if m.Role != o.Role || m.Content != o.Content || !m.Timestamp.Equal(o.Timestamp) {
		return false
	}
	if len(m.extra) != len(o.extra) {
		return false
	}
	for k, v := range m.extra {
		ov, ok := o.extra[k]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.extra)+3)
	for k, v := range m.extra {
		out[k] = v
	}
	out["role"] = m.Role
	out["content"] = m.Content
	if !m.Timestamp.IsZero() {
		out["timestamp"] = m.Timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return &InvalidFormatError{Reason: "record is not an object"}
	}

	rawRole, ok := fields["role"]
	if !ok {
		return &InvalidFormatError{Reason: "record has no role"}
	}
	var role string
	if err := json.Unmarshal(rawRole, &role); err != nil {
		return &InvalidFormatError{Reason: "role must be a string"}
	}
	if !Role(role).Valid() {
		return &InvalidFormatError{Reason: fmt.Sprintf("unknown role %q", role)}
	}

	rawContent, ok := fields["content"]
	if !ok {
		return &InvalidFormatError{Reason: "record has no content"}
	}
	var content *string
	if err := json.Unmarshal(rawContent, &content); err != nil || content == nil {
		return &InvalidFormatError{Reason: "content must be a string"}
	}

	var ts time.Time
	if rawTS, ok := fields["timestamp"]; ok {
		var s string
		if json.Unmarshal(rawTS, &s) == nil {
			if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
				ts = parsed
				delete(fields, "timestamp")
			}
		}
	}

	delete(fields, "role")
	delete(fields, "content")
	if len(fields) == 0 {
		fields = nil
	}

	*m = Message{Role: Role(role), Content: *content, Timestamp: ts, extra: fields}
	return nil
}
