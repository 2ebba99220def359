package llm

import (
	"context"
	"errors"
	"io"

	goopenai "github.com/sashabaranov/go-openai"
)

// DeepSeekClient talks to DeepSeek's OpenAI-compatible chat endpoint.
type DeepSeekClient struct {
	client *goopenai.Client
	apiKey string
}

type DeepSeekClientConfig struct {
	APIKey  string
	BaseURL string
}

func NewDeepSeekClient(cfg DeepSeekClientConfig) *DeepSeekClient {
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &DeepSeekClient{
		client: goopenai.NewClientWithConfig(clientConfig),
		apiKey: cfg.APIKey,
	}
}

func buildDeepSeekRequest(req Request) goopenai.ChatCompletionRequest {
	req = ApplyCapabilities(req)
	caps := CapabilitiesFor(req.ModelID)

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var role string
		switch msg.Role {
		case RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		default:
			role = goopenai.ChatMessageRoleUser
		}
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}

	out := goopenai.ChatCompletionRequest{
		Model:    req.ModelID,
		Messages: messages,
		Stop:     req.Stop,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		out.TopP = float32(*req.TopP)
	}
	if req.FrequencyPenalty != nil {
		out.FrequencyPenalty = float32(*req.FrequencyPenalty)
	}
	if req.PresencePenalty != nil {
		out.PresencePenalty = float32(*req.PresencePenalty)
	}
	if req.MaxOutputTokens != nil {
		if caps.UsesCompletionLimit {
			out.MaxCompletionTokens = int(*req.MaxOutputTokens)
		} else {
			out.MaxTokens = int(*req.MaxOutputTokens)
		}
	}
	if req.ResponseFormat == "json_object" {
		out.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

func (c *DeepSeekClient) Complete(ctx context.Context, req Request) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNoCredentials
	}

	response, err := c.client.CreateChatCompletion(ctx, buildDeepSeekRequest(req))
	if err != nil {
		return Result{}, wrapSashaError("deepseek", err)
	}
	if len(response.Choices) == 0 {
		return Result{}, &RejectedError{Provider: "deepseek", Detail: "empty choices"}
	}

	return Result{
		Content: response.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int64(response.Usage.PromptTokens),
			CompletionTokens: int64(response.Usage.CompletionTokens),
		},
	}, nil
}

func (c *DeepSeekClient) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredentials
	}

	request := buildDeepSeekRequest(req)
	request.Stream = true
	request.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, wrapSashaError("deepseek", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() { _ = stream.Close() }()

		var usage Usage
		usageSeen := false

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				select {
				case events <- Event{Type: EventError, Err: wrapSashaError("deepseek", err)}:
				case <-ctx.Done():
				}
				return
			}
			if chunk.Usage != nil {
				usage = Usage{
					PromptTokens:     int64(chunk.Usage.PromptTokens),
					CompletionTokens: int64(chunk.Usage.CompletionTokens),
				}
				usageSeen = true
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case events <- Event{Type: EventContentDelta, Delta: delta}:
			case <-ctx.Done():
				return
			}
		}

		if !usageSeen {
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

func wrapSashaError(provider string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &RejectedError{
			Provider: provider,
			Status:   apiErr.HTTPStatusCode,
			Detail:   apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &RejectedError{
			Provider: provider,
			Status:   reqErr.HTTPStatusCode,
			Detail:   reqErr.Error(),
		}
	}
	return err
}
