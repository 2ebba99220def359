package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationArchived = errors.New("conversation archived")
)

// OwnerKind mirrors the identity kinds issued by the auth gateway.
type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerAdmin OwnerKind = "admin"
)

// Conversation is a dialogue between one owner and one assistant. Title is
// nil until the first completed turn derives it. ThreadHandle is the lazily
// created provider-side thread for retrieval assistants; empty means none
// exists yet.
type Conversation interface {
	ID() uuid.UUID
	OwnerID() uuid.UUID
	OwnerKind() OwnerKind
	AssistantID() uuid.UUID
	Title() *string
	ThreadHandle() string
	MessageCount() int
	PromptTokens() int64
	CompletionTokens() int64
	LastMessageAt() *time.Time
	Archived() bool
	CreatedAt() time.Time
	UpdatedAt() time.Time

	SetThreadHandle(handle string) Conversation
	SetArchived(archived bool) Conversation
}

type conversationImpl struct {
	id               uuid.UUID
	ownerID          uuid.UUID
	ownerKind        OwnerKind
	assistantID      uuid.UUID
	title            *string
	threadHandle     string
	messageCount     int
	promptTokens     int64
	completionTokens int64
	lastMessageAt    *time.Time
	archived         bool
	createdAt        time.Time
	updatedAt        time.Time
}

func New(ownerID uuid.UUID, ownerKind OwnerKind, assistantID uuid.UUID, opts ...Option) Conversation {
	c := &conversationImpl{
		id:          uuid.New(),
		ownerID:     ownerID,
		ownerKind:   ownerKind,
		assistantID: assistantID,
		createdAt:   time.Now(),
		updatedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*conversationImpl)

func WithID(id uuid.UUID) Option {
	return func(c *conversationImpl) {
		if id != uuid.Nil {
			c.id = id
		}
	}
}

func WithTitle(title *string) Option {
	return func(c *conversationImpl) {
		c.title = title
	}
}

func WithThreadHandle(handle string) Option {
	return func(c *conversationImpl) {
		c.threadHandle = handle
	}
}

func WithCounters(messageCount int, promptTokens, completionTokens int64) Option {
	return func(c *conversationImpl) {
		c.messageCount = messageCount
		c.promptTokens = promptTokens
		c.completionTokens = completionTokens
	}
}

func WithLastMessageAt(t *time.Time) Option {
	return func(c *conversationImpl) {
		c.lastMessageAt = t
	}
}

func WithArchived(archived bool) Option {
	return func(c *conversationImpl) {
		c.archived = archived
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(c *conversationImpl) {
		if !t.IsZero() {
			c.createdAt = t
		}
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(c *conversationImpl) {
		if !t.IsZero() {
			c.updatedAt = t
		}
	}
}

func (c *conversationImpl) ID() uuid.UUID             { return c.id }
func (c *conversationImpl) OwnerID() uuid.UUID        { return c.ownerID }
func (c *conversationImpl) OwnerKind() OwnerKind      { return c.ownerKind }
func (c *conversationImpl) AssistantID() uuid.UUID    { return c.assistantID }
func (c *conversationImpl) Title() *string            { return c.title }
func (c *conversationImpl) ThreadHandle() string      { return c.threadHandle }
func (c *conversationImpl) MessageCount() int         { return c.messageCount }
func (c *conversationImpl) PromptTokens() int64       { return c.promptTokens }
func (c *conversationImpl) CompletionTokens() int64   { return c.completionTokens }
func (c *conversationImpl) LastMessageAt() *time.Time { return c.lastMessageAt }
func (c *conversationImpl) Archived() bool            { return c.archived }
func (c *conversationImpl) CreatedAt() time.Time      { return c.createdAt }
func (c *conversationImpl) UpdatedAt() time.Time      { return c.updatedAt }

func (c *conversationImpl) SetThreadHandle(handle string) Conversation {
	c.threadHandle = handle
	c.updatedAt = time.Now()
	return c
}

func (c *conversationImpl) SetArchived(archived bool) Conversation {
	c.archived = archived
	c.updatedAt = time.Now()
	return c
}
