package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
)

type cachedAssistant struct {
	value     assistant.Assistant
	expiresAt time.Time
}

// CachedAssistantRepository decorates an assistant repository with a TTL
// read cache. Assistants are read on every turn but change rarely; the TTL
// bounds how stale a turn's config snapshot can be. Writes go through to the
// inner repository and invalidate immediately.
type CachedAssistantRepository struct {
	inner assistant.Repository
	ttl   time.Duration

	mu    sync.RWMutex
	items map[uuid.UUID]cachedAssistant
}

func NewCachedAssistantRepository(inner assistant.Repository, ttl time.Duration) *CachedAssistantRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedAssistantRepository{
		inner: inner,
		ttl:   ttl,
		items: make(map[uuid.UUID]cachedAssistant),
	}
}

func (r *CachedAssistantRepository) GetByID(ctx context.Context, id uuid.UUID) (assistant.Assistant, error) {
	r.mu.RLock()
	item, ok := r.items[id]
	r.mu.RUnlock()
	if ok && time.Now().Before(item.expiresAt) {
		return item.value, nil
	}

	a, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.items[id] = cachedAssistant{value: a, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()
	return a, nil
}

// List always hits the inner repository; the admin surface that calls it
// wants current data.
func (r *CachedAssistantRepository) List(ctx context.Context) ([]assistant.Assistant, error) {
	return r.inner.List(ctx)
}

func (r *CachedAssistantRepository) Save(ctx context.Context, a assistant.Assistant) (assistant.Assistant, error) {
	saved, err := r.inner.Save(ctx, a)
	if err != nil {
		return nil, err
	}
	r.Invalidate(saved.ID())
	return saved, nil
}

func (r *CachedAssistantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.Invalidate(id)
	return nil
}

func (r *CachedAssistantRepository) Invalidate(id uuid.UUID) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}
