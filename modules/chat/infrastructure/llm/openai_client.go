package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to the OpenAI chat-completions API (or any compatible
// endpoint via BaseURL).
type OpenAIClient struct {
	client openai.Client
	apiKey string
}

type OpenAIClientConfig struct {
	APIKey  string
	BaseURL string
}

func NewOpenAIClient(cfg OpenAIClientConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		apiKey: cfg.APIKey,
	}
}

func (c *OpenAIClient) buildParams(req Request) openai.ChatCompletionNewParams {
	req = ApplyCapabilities(req)
	caps := CapabilitiesFor(req.ModelID)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.ModelID),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.MaxOutputTokens != nil {
		if caps.UsesCompletionLimit {
			params.MaxCompletionTokens = openai.Int(*req.MaxOutputTokens)
		} else {
			params.MaxTokens = openai.Int(*req.MaxOutputTokens)
		}
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if req.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.ReasoningEffort)
	}
	if req.ResponseFormat == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNoCredentials
	}

	response, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return Result{}, c.wrapError(err)
	}
	if len(response.Choices) == 0 {
		return Result{}, &RejectedError{Provider: "openai", Detail: "empty choices"}
	}

	return Result{
		Content: response.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     response.Usage.PromptTokens,
			CompletionTokens: response.Usage.CompletionTokens,
		},
	}, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredentials
	}

	params := c.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() { _ = stream.Close() }()

		var usage Usage
		usageSeen := false

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 {
				usage = Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
				}
				usageSeen = true
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				// Heartbeat/padding noise, never forwarded.
				continue
			}
			select {
			case events <- Event{Type: EventContentDelta, Delta: delta}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case events <- Event{Type: EventError, Err: c.wrapError(err)}:
			case <-ctx.Done():
			}
			return
		}
		if !usageSeen {
			// A well-formed stream ends with a usage frame. Closing the
			// channel without a terminal event would hang the caller.
			select {
			case events <- Event{Type: EventError, Err: errors.New("stream ended without usage frame")}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case events <- Event{Type: EventUsageFinal, Usage: usage}:
		case <-ctx.Done():
		}
	}()

	return events, nil
}

// ListModels returns the model ids the configured endpoint advertises.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredentials
	}
	response, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	models := make([]string, 0, len(response.Data))
	for _, model := range response.Data {
		models = append(models, model.ID)
	}
	return models, nil
}

func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &RejectedError{
			Provider: "openai",
			Status:   apiErr.StatusCode,
			Detail:   apiErr.Message,
		}
	}
	return err
}
