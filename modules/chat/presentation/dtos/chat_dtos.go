package dtos

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
)

type CreateConversationRequest struct {
	AssistantID uuid.UUID `json:"assistant_id"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type ArchiveRequest struct {
	Archived bool `json:"archived"`
}

type ConversationResponse struct {
	ID               uuid.UUID  `json:"id"`
	AssistantID      uuid.UUID  `json:"assistant_id"`
	Title            *string    `json:"title"`
	MessageCount     int        `json:"message_count"`
	PromptTokens     int64      `json:"prompt_tokens"`
	CompletionTokens int64      `json:"completion_tokens"`
	LastMessageAt    *time.Time `json:"last_message_at"`
	Archived         bool       `json:"archived"`
	CreatedAt        time.Time  `json:"created_at"`
}

func NewConversationResponse(c conversation.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:               c.ID(),
		AssistantID:      c.AssistantID(),
		Title:            c.Title(),
		MessageCount:     c.MessageCount(),
		PromptTokens:     c.PromptTokens(),
		CompletionTokens: c.CompletionTokens(),
		LastMessageAt:    c.LastMessageAt(),
		Archived:         c.Archived(),
		CreatedAt:        c.CreatedAt(),
	}
}

func NewConversationListResponse(convs []conversation.Conversation) []*ConversationResponse {
	out := make([]*ConversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, NewConversationResponse(c))
	}
	return out
}

type MessageResponse struct {
	ID               uuid.UUID `json:"id"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	PromptTokens     int64     `json:"prompt_tokens,omitempty"`
	CompletionTokens int64     `json:"completion_tokens,omitempty"`
	ModelID          string    `json:"model_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewMessageResponse(m conversation.Message) *MessageResponse {
	return &MessageResponse{
		ID:               m.ID(),
		Role:             string(m.Role()),
		Content:          m.Content(),
		PromptTokens:     m.PromptTokens(),
		CompletionTokens: m.CompletionTokens(),
		ModelID:          m.ModelID(),
		CreatedAt:        m.CreatedAt(),
	}
}

func NewMessageListResponse(msgs []conversation.Message) []*MessageResponse {
	out := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageResponse(m))
	}
	return out
}

// TurnResponse is the terminal payload of a turn, both for buffered replies
// and the SSE done event.
type TurnResponse struct {
	MessageID     *uuid.UUID            `json:"message_id"`
	Content       string                `json:"content,omitempty"`
	State         string                `json:"state"`
	TokensUsed    int64                 `json:"tokens_used"`
	TokensBalance int64                 `json:"tokens_balance"`
	Conversation  *ConversationResponse `json:"conversation"`
}

func NewTurnResponse(r *services.TurnResult, includeContent bool) *TurnResponse {
	resp := &TurnResponse{
		State:         string(r.State),
		TokensUsed:    r.TokensUsed,
		TokensBalance: r.TokensBalance,
	}
	if r.Message != nil {
		id := r.Message.ID()
		resp.MessageID = &id
		if includeContent {
			resp.Content = r.Message.Content()
		}
	}
	if r.Conversation != nil {
		resp.Conversation = NewConversationResponse(r.Conversation)
	}
	return resp
}

type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

type AssistantRequest struct {
	Name                 string   `json:"name"`
	Provider             string   `json:"provider"`
	ModelID              string   `json:"model_id"`
	SystemPrompt         string   `json:"system_prompt"`
	Temperature          *float64 `json:"temperature"`
	TopP                 *float64 `json:"top_p"`
	MaxOutputTokens      *int64   `json:"max_output_tokens"`
	FrequencyPenalty     *float64 `json:"frequency_penalty"`
	PresencePenalty      *float64 `json:"presence_penalty"`
	StopSequences        []string `json:"stop_sequences"`
	ResponseFormat       string   `json:"response_format"`
	ReasoningEffort      string   `json:"reasoning_effort"`
	ContentFilterEnabled bool     `json:"content_filter_enabled"`
	KnowledgeBaseID      string   `json:"knowledge_base_id"`
	HistoryWindow        int      `json:"history_window"`
	Enabled              *bool    `json:"enabled"`
}

// ToEntity builds the assistant aggregate; id is Nil on create.
func (r *AssistantRequest) ToEntity(id uuid.UUID) (assistant.Assistant, error) {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return assistant.New(
		r.Name,
		assistant.Provider(r.Provider),
		r.ModelID,
		assistant.WithID(id),
		assistant.WithSystemPrompt(r.SystemPrompt),
		assistant.WithTemperature(r.Temperature),
		assistant.WithTopP(r.TopP),
		assistant.WithMaxOutputTokens(r.MaxOutputTokens),
		assistant.WithFrequencyPenalty(r.FrequencyPenalty),
		assistant.WithPresencePenalty(r.PresencePenalty),
		assistant.WithStopSequences(r.StopSequences),
		assistant.WithResponseFormat(r.ResponseFormat),
		assistant.WithReasoningEffort(r.ReasoningEffort),
		assistant.WithContentFilter(r.ContentFilterEnabled),
		assistant.WithKnowledgeBaseID(r.KnowledgeBaseID),
		assistant.WithHistoryWindow(r.HistoryWindow),
		assistant.WithEnabled(enabled),
	)
}

type AssistantResponse struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Provider             string    `json:"provider"`
	ModelID              string    `json:"model_id"`
	SystemPrompt         string    `json:"system_prompt"`
	Temperature          *float64  `json:"temperature"`
	TopP                 *float64  `json:"top_p"`
	MaxOutputTokens      *int64    `json:"max_output_tokens"`
	FrequencyPenalty     *float64  `json:"frequency_penalty"`
	PresencePenalty      *float64  `json:"presence_penalty"`
	StopSequences        []string  `json:"stop_sequences"`
	ResponseFormat       string    `json:"response_format"`
	ReasoningEffort      string    `json:"reasoning_effort"`
	ContentFilterEnabled bool      `json:"content_filter_enabled"`
	KnowledgeBaseID      string    `json:"knowledge_base_id"`
	HistoryWindow        int       `json:"history_window"`
	Enabled              bool      `json:"enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func NewAssistantResponse(a assistant.Assistant) *AssistantResponse {
	return &AssistantResponse{
		ID:                   a.ID(),
		Name:                 a.Name(),
		Provider:             string(a.Provider()),
		ModelID:              a.ModelID(),
		SystemPrompt:         a.SystemPrompt(),
		Temperature:          a.Temperature(),
		TopP:                 a.TopP(),
		MaxOutputTokens:      a.MaxOutputTokens(),
		FrequencyPenalty:     a.FrequencyPenalty(),
		PresencePenalty:      a.PresencePenalty(),
		StopSequences:        a.StopSequences(),
		ResponseFormat:       a.ResponseFormat(),
		ReasoningEffort:      a.ReasoningEffort(),
		ContentFilterEnabled: a.ContentFilterEnabled(),
		KnowledgeBaseID:      a.KnowledgeBaseID(),
		HistoryWindow:        a.HistoryWindow(),
		Enabled:              a.Enabled(),
		CreatedAt:            a.CreatedAt(),
		UpdatedAt:            a.UpdatedAt(),
	}
}

type UsageReportResponse struct {
	SubjectID        uuid.UUID `json:"subject_id"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Turns            int64     `json:"turns"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
}

func NewUsageReportResponse(r usage.Report) *UsageReportResponse {
	return &UsageReportResponse{
		SubjectID:        r.SubjectID,
		From:             r.From,
		To:               r.To,
		Turns:            r.Turns,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
	}
}
