package models

import (
	"time"

	"github.com/google/uuid"
)

type Assistant struct {
	ID                   uuid.UUID
	Name                 string
	Provider             string
	ModelID              string
	SystemPrompt         string
	Temperature          *float64
	TopP                 *float64
	MaxOutputTokens      *int64
	FrequencyPenalty     *float64
	PresencePenalty      *float64
	StopSequences        []string
	ResponseFormat       string
	ReasoningEffort      string
	ContentFilterEnabled bool
	KnowledgeBaseID      string
	HistoryWindow        int
	Enabled              bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Conversation struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	OwnerKind        string
	AssistantID      uuid.UUID
	Title            *string
	ThreadHandle     string
	MessageCount     int
	PromptTokens     int64
	CompletionTokens int64
	LastMessageAt    *time.Time
	Archived         bool
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Message struct {
	ID               uuid.UUID
	ConversationID   uuid.UUID
	Role             string
	Content          string
	PromptTokens     int64
	CompletionTokens int64
	Provider         string
	ModelID          string
	CreatedAt        time.Time
}

type UsageEntry struct {
	ID               uuid.UUID
	SubjectID        uuid.UUID
	SubjectKind      string
	ConversationID   uuid.UUID
	Provider         string
	ModelID          string
	PromptTokens     int64
	CompletionTokens int64
	CreatedAt        time.Time
}
