// Package openai adapts the OpenAI chat completions API to the reply
// generator used by the widget pipeline.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

var tracer = otel.Tracer("github.com/tbourn/go-widget-leads/internal/integrations/openai")

// ErrEmptyCompletion is returned when the API answers without any text.
var ErrEmptyCompletion = errors.New("openai: empty completion")

// Options tune the completion request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client generates replies through the chat completions endpoint.
type Client struct {
	api  *oai.Client
	opts Options
}

// New returns a client for apiKey. baseURL is the scheme+host of an
// OpenAI-compatible server; empty means api.openai.com.
func New(apiKey, baseURL string, opts Options) *Client {
	cfg := oai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	}
	if opts.Model == "" {
		opts.Model = oai.GPT4oMini
	}
	return &Client{api: oai.NewClientWithConfig(cfg), opts: opts}
}

// Generate sends messages (system preamble first) and returns the first
// choice's content. The caller owns the deadline via ctx.
func (c *Client) Generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "openai.chat_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("gen_ai.request.model", c.opts.Model),
		attribute.Int("gen_ai.request.max_tokens", c.opts.MaxTokens),
		attribute.Int("gen_ai.request.messages", len(messages)),
	)

	msgs := make([]oai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = oai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    msgs,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: float32(c.opts.Temperature),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		span.SetStatus(codes.Error, "empty completion")
		return "", ErrEmptyCompletion
	}
	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
