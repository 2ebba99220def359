package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// AssistantClient runs retrieval-augmented turns through the OpenAI
// Assistants API: a persistent upstream thread per conversation, one run per
// turn, responses grounded in the assistant's uploaded documents.
type AssistantClient struct {
	client       *goopenai.Client
	apiKey       string
	pollInterval time.Duration
	pollAttempts int
}

type AssistantClientConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	PollAttempts int
}

func NewAssistantClient(cfg AssistantClientConfig) *AssistantClient {
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 60
	}
	return &AssistantClient{
		client:       goopenai.NewClientWithConfig(clientConfig),
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}
}

func (c *AssistantClient) Complete(ctx context.Context, req Request) (Result, error) {
	if c.apiKey == "" {
		return Result{}, ErrNoCredentials
	}
	if req.KnowledgeBaseID == "" {
		return Result{}, errors.New("assistant client requires a knowledge base id")
	}

	userText := lastUserMessage(req.Messages)
	if userText == "" {
		return Result{}, errors.New("no user message in request")
	}

	threadID := req.ThreadHandle
	if threadID == "" {
		thread, err := c.client.CreateThread(ctx, goopenai.ThreadRequest{})
		if err != nil {
			return Result{}, classifyThreadError(err)
		}
		threadID = thread.ID
	}

	if _, err := c.client.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    goopenai.ChatMessageRoleUser,
		Content: userText,
	}); err != nil {
		return Result{}, classifyThreadError(err)
	}

	run, err := c.client.CreateRun(ctx, threadID, goopenai.RunRequest{
		AssistantID: req.KnowledgeBaseID,
	})
	if err != nil {
		return Result{}, classifyThreadError(err)
	}

	run, err = c.waitForRun(ctx, threadID, run.ID)
	if err != nil {
		return Result{}, err
	}

	content, err := c.newestAssistantMessage(ctx, threadID, run.ID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Content: content,
		Usage: Usage{
			PromptTokens:     int64(run.Usage.PromptTokens),
			CompletionTokens: int64(run.Usage.CompletionTokens),
		},
		ThreadHandle: threadID,
	}, nil
}

// Stream satisfies Client for retrieval turns: the Assistants API has no
// token stream, so the full reply is emitted as a single delta followed by
// the usage frame.
func (c *AssistantClient) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	events := make(chan Event)
	go func() {
		defer close(events)

		result, err := c.Complete(ctx, req)
		if err != nil {
			select {
			case events <- Event{Type: EventError, Err: err}:
			case <-ctx.Done():
			}
			return
		}
		if result.Content != "" {
			select {
			case events <- Event{Type: EventContentDelta, Delta: result.Content}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case events <- Event{Type: EventUsageFinal, Usage: result.Usage, ThreadHandle: result.ThreadHandle}:
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// DeleteThread releases the upstream thread resource on conversation purge.
func (c *AssistantClient) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return nil
	}
	if _, err := c.client.DeleteThread(ctx, threadID); err != nil {
		classified := classifyThreadError(err)
		if errors.Is(classified, ErrStaleThread) {
			// Already gone upstream; nothing left to release.
			return nil
		}
		return classified
	}
	return nil
}

func (c *AssistantClient) waitForRun(ctx context.Context, threadID, runID string) (goopenai.Run, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return goopenai.Run{}, ctx.Err()
		case <-ticker.C:
		}

		run, err := c.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return goopenai.Run{}, classifyThreadError(err)
		}

		switch run.Status {
		case goopenai.RunStatusCompleted:
			return run, nil
		case goopenai.RunStatusFailed, goopenai.RunStatusExpired, goopenai.RunStatusCancelled:
			return goopenai.Run{}, &RejectedError{
				Provider: "openai-assistants",
				Detail:   fmt.Sprintf("run ended with status %s", run.Status),
			}
		}
	}

	return goopenai.Run{}, ErrRunTimeout
}

func (c *AssistantClient) newestAssistantMessage(ctx context.Context, threadID, runID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", classifyThreadError(err)
	}
	for _, msg := range list.Messages {
		if msg.Role != goopenai.ChatMessageRoleAssistant {
			continue
		}
		for _, content := range msg.Content {
			if content.Text != nil {
				return content.Text.Value, nil
			}
		}
	}
	return "", &RejectedError{Provider: "openai-assistants", Detail: "run produced no assistant message"}
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// classifyThreadError maps upstream failures to the client error taxonomy.
// A 404 on a thread-scoped call means the stored handle no longer resolves;
// surfacing ErrStaleThread lets the caller clear it so the next turn
// recreates the thread.
func classifyThreadError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusNotFound ||
			strings.Contains(strings.ToLower(apiErr.Message), "thread") {
			return fmt.Errorf("%w: %s", ErrStaleThread, apiErr.Message)
		}
		return &RejectedError{
			Provider: "openai-assistants",
			Status:   apiErr.HTTPStatusCode,
			Detail:   apiErr.Message,
		}
	}
	return err
}
