package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence/models"
)

// InmemConversationRepository mirrors the SQL repository's semantics for
// tests and local development.
type InmemConversationRepository struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID]*models.Message
}

func NewInmemConversationRepository() *InmemConversationRepository {
	return &InmemConversationRepository{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID]*models.Message),
	}
}

func (r *InmemConversationRepository) Create(_ context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[c.ID()] = ToDBConversation(c)
	return c, nil
}

func (r *InmemConversationRepository) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.conversations[id]
	if !ok || m.DeletedAt != nil {
		return nil, conversation.ErrConversationNotFound
	}
	clone := *m
	return ToDomainConversation(&clone), nil
}

func (r *InmemConversationRepository) List(_ context.Context, ownerID uuid.UUID, ownerKind conversation.OwnerKind) ([]conversation.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []conversation.Conversation
	var dbModels []*models.Conversation
	for _, m := range r.conversations {
		if m.DeletedAt != nil || m.OwnerID != ownerID || m.OwnerKind != string(ownerKind) {
			continue
		}
		clone := *m
		dbModels = append(dbModels, &clone)
	}
	sort.Slice(dbModels, func(i, j int) bool {
		return lastActivity(dbModels[i]).After(lastActivity(dbModels[j]))
	})
	for _, m := range dbModels {
		out = append(out, ToDomainConversation(m))
	}
	return out, nil
}

func lastActivity(m *models.Conversation) time.Time {
	if m.LastMessageAt != nil {
		return *m.LastMessageAt
	}
	return m.CreatedAt
}

func (r *InmemConversationRepository) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conversations[id]
	if !ok || m.DeletedAt != nil {
		return conversation.ErrConversationNotFound
	}
	m.Archived = archived
	m.UpdatedAt = time.Now()
	return nil
}

func (r *InmemConversationRepository) SetThreadHandle(_ context.Context, id uuid.UUID, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conversations[id]
	if !ok || m.DeletedAt != nil {
		return conversation.ErrConversationNotFound
	}
	m.ThreadHandle = handle
	m.UpdatedAt = time.Now()
	return nil
}

func (r *InmemConversationRepository) SetTitleIfEmpty(_ context.Context, id uuid.UUID, title string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conversations[id]
	if !ok || m.DeletedAt != nil {
		return false, conversation.ErrConversationNotFound
	}
	if m.Title != nil {
		return false, nil
	}
	m.Title = &title
	m.UpdatedAt = time.Now()
	return true, nil
}

func (r *InmemConversationRepository) ApplyTurnUsage(_ context.Context, id uuid.UUID, promptTokens, completionTokens int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conversations[id]
	if !ok || m.DeletedAt != nil {
		return conversation.ErrConversationNotFound
	}
	m.PromptTokens += promptTokens
	m.CompletionTokens += completionTokens
	m.LastMessageAt = &at
	m.UpdatedAt = time.Now()
	return nil
}

func (r *InmemConversationRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.conversations[id]
	if !ok || m.DeletedAt != nil {
		return conversation.ErrConversationNotFound
	}
	now := time.Now()
	m.DeletedAt = &now
	return nil
}

func (r *InmemConversationRepository) HardDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conversations, id)
	for msgID, m := range r.messages {
		if m.ConversationID == id {
			delete(r.messages, msgID)
		}
	}
	return nil
}

func (r *InmemConversationRepository) AddMessage(_ context.Context, m conversation.Message) (conversation.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ID()] = ToDBMessage(m)
	if c, ok := r.conversations[m.ConversationID()]; ok {
		c.MessageCount++
	}
	return m, nil
}

func (r *InmemConversationRepository) DeleteMessage(_ context.Context, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return nil
	}
	delete(r.messages, messageID)
	if c, ok := r.conversations[m.ConversationID]; ok {
		c.MessageCount--
	}
	return nil
}

func (r *InmemConversationRepository) ListMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var dbModels []*models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			clone := *m
			dbModels = append(dbModels, &clone)
		}
	}
	sort.Slice(dbModels, func(i, j int) bool {
		return dbModels[i].CreatedAt.Before(dbModels[j].CreatedAt)
	})
	if limit > 0 && len(dbModels) > limit {
		dbModels = dbModels[len(dbModels)-limit:]
	}

	out := make([]conversation.Message, 0, len(dbModels))
	for _, m := range dbModels {
		msg, err := ToDomainMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// MessageCount reports the number of stored messages for assertions.
func (r *InmemConversationRepository) MessageCount(conversationID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n
}
