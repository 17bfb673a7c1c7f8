// Package openai provides the OpenAI completion client using the official Go SDK.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"seatdesk/pkg/completion"
	"seatdesk/pkg/llmerrors"
)

// Client wraps the official OpenAI Go client to implement completion.Client.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates an OpenAI client for the given model.
func NewClient(apiKey, model string) *Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: client,
		model:  model,
	}
}

// Complete implements completion.Client via the Chat Completions API.
func (c *Client) Complete(ctx context.Context, in completion.Request) (completion.Response, error) {
	if len(in.Messages) == 0 {
		return completion.Response{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case completion.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case completion.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case completion.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		default:
			return completion.Response{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("unsupported role: %s", msg.Role))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(in.MaxTokens)),
		Temperature: openai.Float(float64(in.Temperature)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return completion.Response{}, llmerrors.Classify(fmt.Errorf("OpenAI chat completion failed: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return completion.Response{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "OpenAI returned no choices")
	}

	choice := resp.Choices[0]
	return completion.Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}, nil
}

// ModelName returns the model name for this client.
func (c *Client) ModelName() string {
	return c.model
}
