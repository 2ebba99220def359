package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence/models"
)

type InmemAssistantRepository struct {
	mu         sync.RWMutex
	assistants map[uuid.UUID]*models.Assistant
}

func NewInmemAssistantRepository() *InmemAssistantRepository {
	return &InmemAssistantRepository{
		assistants: make(map[uuid.UUID]*models.Assistant),
	}
}

func (r *InmemAssistantRepository) GetByID(_ context.Context, id uuid.UUID) (assistant.Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.assistants[id]
	if !ok {
		return nil, assistant.ErrAssistantNotFound
	}
	clone := *m
	return ToDomainAssistant(&clone)
}

func (r *InmemAssistantRepository) List(_ context.Context) ([]assistant.Assistant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var dbModels []*models.Assistant
	for _, m := range r.assistants {
		clone := *m
		dbModels = append(dbModels, &clone)
	}
	sort.Slice(dbModels, func(i, j int) bool {
		return dbModels[i].CreatedAt.Before(dbModels[j].CreatedAt)
	})

	out := make([]assistant.Assistant, 0, len(dbModels))
	for _, m := range dbModels {
		a, err := ToDomainAssistant(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *InmemAssistantRepository) Save(_ context.Context, a assistant.Assistant) (assistant.Assistant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assistants[a.ID()] = ToDBAssistant(a)
	return a, nil
}

func (r *InmemAssistantRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.assistants, id)
	return nil
}
