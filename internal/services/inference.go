package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/tidwall/gjson"

	"verona-backend/internal/conversation"
	"verona-backend/internal/reply"
)

const DefaultBaseURL = "https://router.huggingface.co/v1"

// InferenceProvider is the remote completion endpoint. Both calls take an
// ordered list of role/content records; Stream yields incremental fragments,
// Complete a single text.
type InferenceProvider interface {
	Stream(ctx context.Context, model string, msgs []conversation.Message) (reply.FragmentSource, error)
	Complete(ctx context.Context, model string, msgs []conversation.Message) (string, error)
}

// HFInference talks to the Hugging Face router through its OpenAI-compatible
// chat completions API.
type HFInference struct {
	client   openai.Client
	rateChan chan struct{} // Token bucket
}

func NewHFInference(token, baseURL string, concurrentReqs int) *HFInference {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &HFInference{
		client: openai.NewClient(
			option.WithAPIKey(token),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
		rateChan: rateChan,
	}
}

// acquireRate blocks until a rate slot is available
func (s *HFInference) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return classifyError(ctx.Err())
	}
}

func (s *HFInference) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *HFInference) Stream(ctx context.Context, model string, msgs []conversation.Message) (reply.FragmentSource, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: buildMessages(msgs),
	})
	return &completionStream{stream: stream, release: s.releaseRate}, nil
}

func (s *HFInference) Complete(ctx context.Context, model string, msgs []conversation.Message) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: buildMessages(msgs),
	})
	if err != nil {
		return "", classifyError(err)
	}
	return extractReply(resp.RawJSON()), nil
}

func buildMessages(msgs []conversation.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case conversation.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case conversation.RoleUser:
			params = append(params, openai.UserMessage(m.Content))
		case conversation.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		}
	}
	return params
}

// completionStream adapts the SSE chunk stream to reply.FragmentSource. The
// rate slot is returned once the stream ends, whichever way it ends.
type completionStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	release func()
	done    bool
}

func (c *completionStream) Next(ctx context.Context) (string, error) {
	if c.done {
		return "", io.EOF
	}

	for c.stream.Next() {
		if err := ctx.Err(); err != nil {
			return "", c.finish(err)
		}

		chunk := c.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		// Chunks that only carry reasoning_content have no text for us.
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}

	if err := c.stream.Err(); err != nil {
		return "", c.finish(err)
	}
	if err := ctx.Err(); err != nil {
		return "", c.finish(err)
	}
	return "", c.finish(io.EOF)
}

func (c *completionStream) finish(err error) error {
	c.done = true
	c.stream.Close()
	c.release()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return classifyError(err)
}

// classifyError maps transport and API failures onto ProviderError and
// TimeoutError. Errors that already carry one of those types pass through.
func classifyError(err error) error {
	var pe *ProviderError
	var te *TimeoutError
	if errors.As(err, &pe) || errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &ProviderError{Status: apiErr.StatusCode, Message: msg}
	}
	return &ProviderError{Message: err.Error()}
}

// extractReply pulls the reply text out of a raw completion body. Providers
// behind the router do not all answer in the OpenAI shape, so a few known
// alternatives are tried before falling back to the body itself.
func extractReply(raw string) string {
	paths := []string{
		"choices.0.message.content",
		"choices.0.text",
		"choices.0.delta.content",
		"choices.0.delta.text",
		"generated_text",
		"0.generated_text",
		"message.content",
	}
	for _, p := range paths {
		if r := gjson.Get(raw, p); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return raw
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

var _ InferenceProvider = (*HFInference)(nil)

