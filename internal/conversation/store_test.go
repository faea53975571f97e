package conversation

import (
	"errors"
	"fmt"
	"testing"
)

func seededStore(t *testing.T, contents ...string) *Store {
	t.Helper()
	s := NewWithSystem("be helpful")
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if err := s.Append(NewMessage(role, c)); err != nil {
			t.Fatalf("append %q: %v", c, err)
		}
	}
	return s
}

func contentsOf(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestAppend_PreservesOrderAndSystemPosition(t *testing.T) {
	s := seededStore(t, "u1", "a1", "u2", "a2", "u3")

	got := contentsOf(s.Messages())
	want := []string{"be helpful", "u1", "a1", "u2", "a2", "u3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if s.Messages()[0].Role != RoleSystem {
		t.Fatalf("expected system message at index 0")
	}
	for i, m := range s.Messages()[1:] {
		if m.Role == RoleSystem {
			t.Fatalf("unexpected system message at index %d", i+1)
		}
	}
}

func TestAppend_InvalidRole(t *testing.T) {
	s := seededStore(t, "u1")

	err := s.Append(Message{Role: "moderator", Content: "hi"})
	var roleErr *InvalidRoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("expected InvalidRoleError, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected store to be unchanged, got %d messages", s.Len())
	}
}

func TestAppend_SystemOnlyIntoEmptyStore(t *testing.T) {
	s := New()
	if err := s.Append(NewMessage(RoleSystem, "sys")); err != nil {
		t.Fatalf("expected system message to be accepted into empty store: %v", err)
	}

	err := s.Append(NewMessage(RoleSystem, "second"))
	var roleErr *InvalidRoleError
	if !errors.As(err, &roleErr) {
		t.Fatalf("expected InvalidRoleError for second system message, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", s.Len())
	}
}

func TestWindow(t *testing.T) {
	s := seededStore(t, "user1", "assistant1", "user2", "assistant2", "user3")

	got := s.Window(2)
	want := []string{"be helpful", "assistant2", "user3"}
	if fmt.Sprint(contentsOf(got)) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, contentsOf(got))
	}
	if got[0].Role != RoleSystem || got[1].Role != RoleAssistant || got[2].Role != RoleUser {
		t.Fatalf("unexpected roles in window: %+v", got)
	}
}

func TestWindow_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		contents []string
		k        int
		want     int
	}{
		{"fewer than k", []string{"u1", "a1"}, 8, 3},
		{"exactly k", []string{"u1", "a1", "u2"}, 3, 4},
		{"more than k", []string{"u1", "a1", "u2", "a2", "u3", "a3"}, 4, 5},
		{"zero k", []string{"u1", "a1"}, 0, 1},
		{"negative k", []string{"u1"}, -3, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := seededStore(t, tc.contents...)
			got := s.Window(tc.k)
			if len(got) != tc.want {
				t.Fatalf("expected %d messages, got %d", tc.want, len(got))
			}
		})
	}
}

func TestWindow_NoSystemMessageNeverFabricated(t *testing.T) {
	s := New()
	s.Append(NewMessage(RoleUser, "u1"))
	s.Append(NewMessage(RoleAssistant, "a1"))
	s.Append(NewMessage(RoleUser, "u2"))

	got := s.Window(2)
	want := []string{"a1", "u2"}
	if fmt.Sprint(contentsOf(got)) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, contentsOf(got))
	}
}

func TestWindow_DoesNotAliasStore(t *testing.T) {
	s := seededStore(t, "u1", "a1")
	w := s.Window(8)
	w[1].Content = "mutated"

	if s.Messages()[1].Content != "u1" {
		t.Fatalf("window mutation leaked into the store")
	}
}

func TestClear(t *testing.T) {
	s := seededStore(t, "u1", "a1")
	s.Clear("ignored default")

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Content != "be helpful" {
		t.Fatalf("expected only the original system message, got %v", contentsOf(msgs))
	}
}

func TestClear_UsesDefaultWhenNoSystemMessage(t *testing.T) {
	s := New()
	s.Append(NewMessage(RoleUser, "u1"))
	s.Clear("fallback prompt")

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleSystem || msgs[0].Content != "fallback prompt" {
		t.Fatalf("expected default system message, got %+v", msgs)
	}

	empty := New()
	empty.Clear("")
	if empty.Len() != 0 {
		t.Fatalf("expected empty store, got %d messages", empty.Len())
	}
}

func TestReplaceAll_AtomicOnError(t *testing.T) {
	s := seededStore(t, "u1", "a1")

	err := s.ReplaceAll([]Message{
		NewMessage(RoleUser, "x"),
		NewMessage(RoleSystem, "late system"),
	})
	var formatErr *InvalidFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected InvalidFormatError, got %v", err)
	}
	if got := contentsOf(s.Messages()); fmt.Sprint(got) != fmt.Sprint([]string{"be helpful", "u1", "a1"}) {
		t.Fatalf("store changed after failed replace: %v", got)
	}
}

func TestReplaceAll(t *testing.T) {
	s := seededStore(t, "u1")
	replacement := []Message{
		NewMessage(RoleSystem, "new system"),
		NewMessage(RoleUser, "hello"),
	}
	if err := s.ReplaceAll(replacement); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replacement[1].Content = "mutated"
	if got := contentsOf(s.Messages()); fmt.Sprint(got) != fmt.Sprint([]string{"new system", "hello"}) {
		t.Fatalf("unexpected contents: %v", got)
	}
}

func TestVisible(t *testing.T) {
	s := seededStore(t, "u1", "a1")
	if got := contentsOf(s.Visible()); fmt.Sprint(got) != fmt.Sprint([]string{"u1", "a1"}) {
		t.Fatalf("unexpected visible conversation: %v", got)
	}
}
