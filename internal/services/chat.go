package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"verona-backend/internal/conversation"
	"verona-backend/internal/models"
	"verona-backend/internal/reply"
)

// Publisher fans live updates out to whoever is watching a session.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, uuid.UUID, models.WSMessage) {}

type ChatOptions struct {
	Model      string
	WindowSize int
	Timeout    time.Duration
}

type ChatService struct {
	sessions  *SessionManager
	provider  InferenceProvider
	publisher Publisher
	opts      ChatOptions
}

func NewChatService(sessions *SessionManager, provider InferenceProvider, publisher Publisher, opts ChatOptions) *ChatService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &ChatService{
		sessions:  sessions,
		provider:  provider,
		publisher: publisher,
		opts:      opts,
	}
}

// TurnResult is what one Send produced. On a failed turn Reply holds the
// partial reply, which has also been committed when non-empty.
type TurnResult struct {
	Reply    string
	Messages []conversation.Message
}

func errBusy() error {
	return &ConflictError{Message: "A reply is still being generated for this session"}
}

// Send runs one turn: append the user message, send the outbound window to
// the provider, assemble the reply and commit it. onVisible receives every
// change of the displayable text while the reply is being assembled.
func (c *ChatService) Send(ctx context.Context, sessionID uuid.UUID, text string, stream bool, onVisible func(string)) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}

	sess, err := c.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.end()

	var window []conversation.Message
	sess.View(func(store *conversation.Store) {
		if err = store.Append(conversation.NewMessage(conversation.RoleUser, text)); err == nil {
			window = store.Window(c.opts.WindowSize)
		}
	})
	if err != nil {
		return nil, err
	}

	notify := func(visible string) {
		if onVisible != nil {
			onVisible(visible)
		}
		c.publisher.Publish(ctx, sess.ID, models.WSMessage{
			Type:    "visible",
			Payload: models.VisibleUpdate{SessionID: sess.ID.String(), Text: visible},
		})
	}

	res, turnErr := c.generate(ctx, window, stream, notify)

	result := &TurnResult{Reply: res.Final}
	sess.View(func(store *conversation.Store) {
		if res.Final != "" {
			store.Append(conversation.NewMessage(conversation.RoleAssistant, res.Final))
		}
		result.Messages = store.Visible()
	})

	bg := context.WithoutCancel(ctx)
	c.sessions.Persist(bg, sess)

	if turnErr != nil {
		log.Printf("session %s: turn failed: %v", sess.ID, turnErr)
		code, msg := TurnErrorCode(turnErr)
		c.publisher.Publish(bg, sess.ID, models.WSMessage{
			Type: "error",
			Payload: models.TurnError{
				SessionID:    sess.ID.String(),
				Code:         code,
				Message:      msg,
				PartialReply: res.Final,
			},
		})
		return result, turnErr
	}

	c.publisher.Publish(bg, sess.ID, models.WSMessage{
		Type:    "final",
		Payload: models.VisibleUpdate{SessionID: sess.ID.String(), Text: res.Final},
	})
	return result, nil
}

func (c *ChatService) generate(ctx context.Context, window []conversation.Message, stream bool, notify func(string)) (reply.Result, error) {
	ctx, cancel := withTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var src reply.FragmentSource
	if stream {
		s, err := c.provider.Stream(ctx, c.opts.Model, window)
		if err != nil {
			return reply.Result{}, c.turnError(err)
		}
		src = s
	} else {
		text, err := c.provider.Complete(ctx, c.opts.Model, window)
		if err != nil {
			return reply.Result{}, c.turnError(err)
		}
		src = reply.Fragments(text)
	}

	res, err := reply.Collect(ctx, src, notify)
	if err != nil {
		return res, c.turnError(err)
	}
	return res, nil
}

func (c *ChatService) turnError(err error) error {
	err = classifyError(err)
	var te *TimeoutError
	if errors.As(err, &te) && te.After == 0 {
		return &TimeoutError{After: c.opts.Timeout}
	}
	return err
}

// TurnErrorCode is the API error code and user-facing message for a failed
// turn.
func TurnErrorCode(err error) (string, string) {
	var te *TimeoutError
	var pe *ProviderError
	switch {
	case errors.As(err, &te):
		return "PROVIDER_TIMEOUT", "The model did not answer in time. Please try again."
	case errors.As(err, &pe):
		return "PROVIDER_ERROR", pe.Error()
	}
	return "INTERNAL_ERROR", err.Error()
}

func (c *ChatService) CreateSession(ctx context.Context) (uuid.UUID, []conversation.Message) {
	sess := c.sessions.Create(ctx)
	var msgs []conversation.Message
	sess.View(func(store *conversation.Store) {
		msgs = store.Visible()
	})
	return sess.ID, msgs
}

// Messages returns the visible conversation (system message excluded).
func (c *ChatService) Messages(ctx context.Context, sessionID uuid.UUID) []conversation.Message {
	var msgs []conversation.Message
	c.sessions.Open(ctx, sessionID).View(func(store *conversation.Store) {
		msgs = store.Visible()
	})
	return msgs
}

// Clear resets the conversation to its system message.
func (c *ChatService) Clear(ctx context.Context, sessionID uuid.UUID) ([]conversation.Message, error) {
	return c.mutate(ctx, sessionID, "cleared", func(store *conversation.Store) error {
		store.Clear(c.sessions.SystemPrompt())
		return nil
	})
}

// Import replaces the conversation with a snapshot document. A malformed
// document returns *conversation.InvalidFormatError and changes nothing.
func (c *ChatService) Import(ctx context.Context, sessionID uuid.UUID, data []byte) ([]conversation.Message, error) {
	return c.mutate(ctx, sessionID, "imported", func(store *conversation.Store) error {
		return store.Import(data)
	})
}

func (c *ChatService) Export(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	var data []byte
	var err error
	c.sessions.Open(ctx, sessionID).View(func(store *conversation.Store) {
		data, err = store.Snapshot()
	})
	return data, err
}

func (c *ChatService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := c.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer sess.end()

	c.sessions.Delete(ctx, sessionID)
	return nil
}

func (c *ChatService) mutate(ctx context.Context, sessionID uuid.UUID, event string, fn func(store *conversation.Store) error) ([]conversation.Message, error) {
	sess, err := c.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.end()

	var msgs []conversation.Message
	sess.View(func(store *conversation.Store) {
		if err = fn(store); err == nil {
			msgs = store.Visible()
		}
	})
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	c.sessions.Persist(bg, sess)
	c.publisher.Publish(bg, sess.ID, models.WSMessage{
		Type:    event,
		Payload: map[string]interface{}{"session_id": sess.ID.String(), "messages": msgs},
	})
	return msgs, nil
}
