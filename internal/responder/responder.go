// Package responder generates auto-reply text. The primary path is the
// sibling responder service over HTTP; when it is unreachable or answers
// badly, one fallback attempt goes straight to OpenAI.
package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultModel = openai.GPT4oMini

// generateRequest is the wire shape the sibling service expects.
type generateRequest struct {
	Key         string `json:"key"`
	Instruction string `json:"instruction"`
}

type generateResponse struct {
	Reply string `json:"reply"`
}

// Client generates replies. Zero-value fields disable the matching path:
// no endpoint means OpenAI only, no OpenAI client means endpoint only.
type Client struct {
	http     *resty.Client
	endpoint string
	openai   *openai.Client
	model    string
	logger   *zap.Logger
}

// Options configures the client.
type Options struct {
	// Endpoint is the sibling responder service URL; empty disables it.
	Endpoint string
	// OpenAIKey enables the fallback path; empty disables it.
	OpenAIKey string
	// Model for the fallback path. Defaults to gpt-4o-mini.
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// New builds a client. At least one of Endpoint and OpenAIKey must be set.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" && opts.OpenAIKey == "" {
		return nil, fmt.Errorf("responder: endpoint or OpenAI key required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	c := &Client{
		endpoint: opts.Endpoint,
		model:    opts.Model,
		logger:   opts.Logger,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if opts.Endpoint != "" {
		c.http = resty.New().
			SetBaseURL(opts.Endpoint).
			SetTimeout(opts.Timeout).
			SetRetryCount(1)
	}
	if opts.OpenAIKey != "" {
		c.openai = openai.NewClient(opts.OpenAIKey)
	}
	return c, nil
}

// Generate produces reply text for the conversation key. Satisfies the
// dispatcher's responder dependency.
func (c *Client) Generate(ctx context.Context, key, instruction string) (string, error) {
	if c.http != nil {
		reply, err := c.generateRemote(ctx, key, instruction)
		if err == nil {
			return reply, nil
		}
		if c.openai == nil {
			return "", err
		}
		c.logger.Warn("responder service failed, falling back to OpenAI",
			zap.String("key", key), zap.Error(err))
	}
	return c.generateFallback(ctx, instruction)
}

func (c *Client) generateRemote(ctx context.Context, key, instruction string) (string, error) {
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{Key: key, Instruction: instruction}).
		SetResult(&out).
		Post("/generate")
	if err != nil {
		return "", fmt.Errorf("responder: request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("responder: service returned %s", resp.Status())
	}
	if out.Reply == "" {
		return "", fmt.Errorf("responder: empty reply from service")
	}
	return out.Reply, nil
}

func (c *Client) generateFallback(ctx context.Context, instruction string) (string, error) {
	if c.openai == nil {
		return "", fmt.Errorf("responder: no generation path configured")
	}
	resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: instruction},
		},
		MaxTokens: 512,
	})
	if err != nil {
		return "", fmt.Errorf("responder: fallback completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("responder: fallback returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}
