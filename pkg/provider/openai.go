package provider

import (
	"context"
	"fmt"

	"github.com/GaaneshT/codex/internal/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements ModelClient for chat-completions compatible servers
// (OpenAI itself, local OSS servers, custom providers).
type OpenAIClient struct {
	id     string
	client openai.Client
}

// NewOpenAIClient creates a new chat-completions client
func NewOpenAIClient(id, baseURL, apiKey string) *OpenAIClient {
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIClient{
		id:     id,
		client: openai.NewClient(opts...),
	}
}

// Provider returns the provider id
func (c *OpenAIClient) Provider() string {
	return c.id
}

// Complete makes an API call to the chat completions endpoint
func (c *OpenAIClient) Complete(ctx context.Context, request Request) (*Response, error) {
	response, err := c.client.Chat.Completions.New(ctx, buildChatParams(request))
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	return &Response{
		Content: response.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
		},
	}, nil
}

func buildChatParams(request Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if request.Instructions != "" {
		messages = append(messages, openai.SystemMessage(request.Instructions))
	}
	for _, msg := range request.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
	}

	if request.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(request.MaxTokens))
	}

	// "none" sends no effort at all.
	switch request.Effort {
	case config.ReasoningEffortMinimal, config.ReasoningEffortLow, config.ReasoningEffortMedium, config.ReasoningEffortHigh:
		params.ReasoningEffort = shared.ReasoningEffort(request.Effort)
	}

	return params
}
