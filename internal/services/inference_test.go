package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"verona-backend/internal/conversation"
)

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"openai chat shape", `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`, "hi"},
		{"text completion shape", `{"choices":[{"text":"plain"}]}`, "plain"},
		{"delta shape", `{"choices":[{"delta":{"content":"chunk"}}]}`, "chunk"},
		{"generated_text", `{"generated_text":"tgi"}`, "tgi"},
		{"generated_text list", `[{"generated_text":"listed"}]`, "listed"},
		{"message object", `{"message":{"content":"nested"}}`, "nested"},
		{"unknown shape", `{"foo":"bar"}`, `{"foo":"bar"}`},
		{"empty content falls through", `{"choices":[{"message":{"content":""}}],"generated_text":"fallback"}`, "fallback"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractReply(tc.raw); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	if _, ok := classifyError(context.DeadlineExceeded).(*TimeoutError); !ok {
		t.Fatalf("expected deadline to map to TimeoutError")
	}
	wrapped := fmt.Errorf("stream: %w", context.DeadlineExceeded)
	if _, ok := classifyError(wrapped).(*TimeoutError); !ok {
		t.Fatalf("expected wrapped deadline to map to TimeoutError")
	}

	pe := &ProviderError{Status: 429, Message: "slow down"}
	if got := classifyError(pe); got != pe {
		t.Fatalf("expected ProviderError to pass through, got %v", got)
	}

	var out *ProviderError
	if !errors.As(classifyError(errors.New("boom")), &out) || out.Message != "boom" || out.Status != 0 {
		t.Fatalf("expected generic error to become ProviderError, got %v", out)
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := []conversation.Message{
		conversation.NewMessage(conversation.RoleSystem, "sys"),
		conversation.NewMessage(conversation.RoleUser, "u"),
		conversation.NewMessage(conversation.RoleAssistant, "a"),
	}
	params := buildMessages(msgs)
	if len(params) != 3 {
		t.Fatalf("expected 3 params, got %d", len(params))
	}
	if params[0].OfSystem == nil || params[1].OfUser == nil || params[2].OfAssistant == nil {
		t.Fatalf("roles not mapped in order: %+v", params)
	}
}

func TestProviderErrorMessage(t *testing.T) {
	if got := (&ProviderError{Status: 503, Message: "busy"}).Error(); got != "provider error 503: busy" {
		t.Fatalf("unexpected message %q", got)
	}
}
