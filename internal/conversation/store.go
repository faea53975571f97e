package conversation

import "fmt"

// Store owns the ordered message sequence of one session. The first message,
// if it is a system message, is the only system message in the store.
//
// A Store is not safe for concurrent use; every session owns its own.
type Store struct {
	messages []Message
}

func New() *Store {
	return &Store{}
}

// NewWithSystem returns a store seeded with a system message. An empty prompt
// yields an empty store.
func NewWithSystem(prompt string) *Store {
	s := New()
	if prompt != "" {
		s.messages = append(s.messages, NewMessage(RoleSystem, prompt))
	}
	return s
}

// Append adds msg to the end of the conversation. A system message is only
// accepted as the first message.
func (s *Store) Append(msg Message) error {
	if !msg.Role.Valid() {
		return &InvalidRoleError{Role: msg.Role}
	}
	if msg.Role == RoleSystem && len(s.messages) > 0 {
		return &InvalidRoleError{Role: msg.Role, Reason: "system message must be the first message"}
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Window returns the system message, if any, followed by the last k
// non-system messages in conversation order.
func (s *Store) Window(k int) []Message {
	if k < 0 {
		k = 0
	}

	var out []Message
	rest := s.messages
	if sys, ok := s.System(); ok {
		out = append(out, sys)
		rest = rest[1:]
	}
	if len(rest) > k {
		rest = rest[len(rest)-k:]
	}
	return append(out, rest...)
}

// Clear drops every message except the system message. When the store has
// no system message, defaultPrompt (if non-empty) becomes one.
func (s *Store) Clear(defaultPrompt string) {
	if sys, ok := s.System(); ok {
		s.messages = []Message{sys}
		return
	}
	s.messages = nil
	if defaultPrompt != "" {
		s.messages = []Message{NewMessage(RoleSystem, defaultPrompt)}
	}
}

// ReplaceAll swaps in msgs wholesale. On error the store is left unchanged.
func (s *Store) ReplaceAll(msgs []Message) error {
	if err := validateSequence(msgs); err != nil {
		return err
	}
	s.messages = append([]Message(nil), msgs...)
	return nil
}

func (s *Store) System() (Message, bool) {
	if len(s.messages) > 0 && s.messages[0].Role == RoleSystem {
		return s.messages[0], true
	}
	return Message{}, false
}

// Messages returns a copy of the conversation.
func (s *Store) Messages() []Message {
	return clone(s.messages)
}

// Visible returns the conversation without the system message.
func (s *Store) Visible() []Message {
	if _, ok := s.System(); ok {
		return clone(s.messages[1:])
	}
	return clone(s.messages)
}

func (s *Store) Len() int {
	return len(s.messages)
}

func clone(msgs []Message) []Message {
	return append(make([]Message, 0, len(msgs)), msgs...)
}

func validateSequence(msgs []Message) error {
	for i, m := range msgs {
		if !m.Role.Valid() {
			return &InvalidFormatError{Reason: fmt.Sprintf("message %d has unknown role %q", i, m.Role)}
		}
		if m.Role == RoleSystem && i != 0 {
			return &InvalidFormatError{Reason: fmt.Sprintf("system message at position %d, only position 0 is allowed", i)}
		}
	}
	return nil
}
