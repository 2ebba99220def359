package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
)

const MaxMessageLength = 32768

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one persisted turn half. Token counts are zero on user
// messages; on assistant messages they carry the provider-reported usage of
// the turn that produced them.
type Message interface {
	ID() uuid.UUID
	ConversationID() uuid.UUID
	Role() Role
	Content() string
	PromptTokens() int64
	CompletionTokens() int64
	Provider() string
	ModelID() string
	CreatedAt() time.Time
}

type messageImpl struct {
	id               uuid.UUID
	conversationID   uuid.UUID
	role             Role
	content          string
	promptTokens     int64
	completionTokens int64
	provider         string
	modelID          string
	createdAt        time.Time
}

func NewMessage(conversationID uuid.UUID, role Role, content string, opts ...MessageOption) (Message, error) {
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	m := &messageImpl{
		id:             uuid.New(),
		conversationID: conversationID,
		role:           role,
		content:        content,
		createdAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type MessageOption func(*messageImpl)

func WithMessageID(id uuid.UUID) MessageOption {
	return func(m *messageImpl) {
		if id != uuid.Nil {
			m.id = id
		}
	}
}

func WithUsage(promptTokens, completionTokens int64) MessageOption {
	return func(m *messageImpl) {
		m.promptTokens = promptTokens
		m.completionTokens = completionTokens
	}
}

func WithModel(provider, modelID string) MessageOption {
	return func(m *messageImpl) {
		m.provider = provider
		m.modelID = modelID
	}
}

func WithMessageCreatedAt(t time.Time) MessageOption {
	return func(m *messageImpl) {
		if !t.IsZero() {
			m.createdAt = t
		}
	}
}

func (m *messageImpl) ID() uuid.UUID             { return m.id }
func (m *messageImpl) ConversationID() uuid.UUID { return m.conversationID }
func (m *messageImpl) Role() Role                { return m.role }
func (m *messageImpl) Content() string           { return m.content }
func (m *messageImpl) PromptTokens() int64       { return m.promptTokens }
func (m *messageImpl) CompletionTokens() int64   { return m.completionTokens }
func (m *messageImpl) Provider() string          { return m.provider }
func (m *messageImpl) ModelID() string           { return m.modelID }
func (m *messageImpl) CreatedAt() time.Time      { return m.createdAt }
