package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements ModelClient for the Anthropic Messages API
type AnthropicClient struct {
	id     string
	client anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client. An empty baseURL keeps
// the SDK default.
func NewAnthropicClient(id, baseURL, apiKey string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		id:     id,
		client: anthropic.NewClient(opts...),
	}
}

// Provider returns the provider id
func (c *AnthropicClient) Provider() string {
	return c.id
}

// Complete makes an API call to Anthropic Claude
func (c *AnthropicClient) Complete(ctx context.Context, request Request) (*Response, error) {
	response, err := c.client.Messages.New(ctx, buildMessageParams(request))
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(b.Text)
		}
	}

	return &Response{
		Content: content.String(),
		Usage: Usage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}, nil
}

func buildMessageParams(request Request) anthropic.MessageNewParams {
	messages := []anthropic.MessageParam{}
	for _, msg := range request.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if request.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: request.Instructions}}
	}
	return params
}
