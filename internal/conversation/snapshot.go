package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Snapshot serializes the conversation as a flat JSON list of records.
func (s *Store) Snapshot() ([]byte, error) {
	msgs := s.messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.MarshalIndent(msgs, "", "  ")
}

// Import decodes data and replaces the conversation with it. A malformed
// document leaves the store untouched.
func (s *Store) Import(data []byte) error {
	msgs, err := Decode(data)
	if err != nil {
		return err
	}
	return s.ReplaceAll(msgs)
}

// Restore rebuilds a store from a snapshot. Missing or corrupt data yields an
// empty store; conversation history is not critical state.
func Restore(data []byte) *Store {
	s := New()
	if len(data) == 0 {
		return s
	}
	if err := s.Import(data); err != nil {
		return New()
	}
	return s
}

// Decode strictly parses a snapshot document. Every error it returns is an
// *InvalidFormatError.
func Decode(data []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &InvalidFormatError{Reason: "conversation must be a JSON list"}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &InvalidFormatError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	msgs := make([]Message, 0, len(records))
	for i, raw := range records {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			var fe *InvalidFormatError
			if errors.As(err, &fe) {
				return nil, &InvalidFormatError{Reason: fmt.Sprintf("message %d: %s", i, fe.Reason)}
			}
			return nil, &InvalidFormatError{Reason: fmt.Sprintf("message %d: %v", i, err)}
		}
		msgs = append(msgs, m)
	}

	if err := validateSequence(msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
