package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
)

// countingAssistantRepo tracks reads that reach the inner repository.
type countingAssistantRepo struct {
	assistant.Repository
	mu    sync.Mutex
	reads int
}

func (r *countingAssistantRepo) GetByID(ctx context.Context, id uuid.UUID) (assistant.Assistant, error) {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()
	return r.Repository.GetByID(ctx, id)
}

func (r *countingAssistantRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func TestCachedAssistantRepository_ServesFromCache(t *testing.T) {
	inner := &countingAssistantRepo{Repository: persistence.NewInmemAssistantRepository()}
	cache := services.NewCachedAssistantRepository(inner, time.Minute)
	ctx := context.Background()

	a, err := assistant.New("Helper", assistant.ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	_, err = cache.Save(ctx, a)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		got, err := cache.GetByID(ctx, a.ID())
		require.NoError(t, err)
		assert.Equal(t, a.ID(), got.ID())
	}
	assert.Equal(t, 1, inner.readCount())
}

func TestCachedAssistantRepository_TTLExpiry(t *testing.T) {
	inner := &countingAssistantRepo{Repository: persistence.NewInmemAssistantRepository()}
	cache := services.NewCachedAssistantRepository(inner, 10*time.Millisecond)
	ctx := context.Background()

	a, err := assistant.New("Helper", assistant.ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	_, err = cache.Save(ctx, a)
	require.NoError(t, err)

	_, err = cache.GetByID(ctx, a.ID())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = cache.GetByID(ctx, a.ID())
	require.NoError(t, err)

	assert.Equal(t, 2, inner.readCount())
}

func TestCachedAssistantRepository_SaveInvalidates(t *testing.T) {
	inner := &countingAssistantRepo{Repository: persistence.NewInmemAssistantRepository()}
	cache := services.NewCachedAssistantRepository(inner, time.Minute)
	ctx := context.Background()

	a, err := assistant.New("Helper", assistant.ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	_, err = cache.Save(ctx, a)
	require.NoError(t, err)

	_, err = cache.GetByID(ctx, a.ID())
	require.NoError(t, err)

	updated, err := assistant.New("Helper v2", assistant.ProviderOpenAI, "gpt-4o", assistant.WithID(a.ID()))
	require.NoError(t, err)
	_, err = cache.Save(ctx, updated)
	require.NoError(t, err)

	got, err := cache.GetByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, "Helper v2", got.Name())
}

// remappingAssistantRepo saves under a repository-assigned id, ignoring the
// id on the incoming entity.
type remappingAssistantRepo struct {
	assistant.Repository
	assignedID uuid.UUID
}

func (r *remappingAssistantRepo) Save(ctx context.Context, a assistant.Assistant) (assistant.Assistant, error) {
	reassigned, err := assistant.New(a.Name(), a.Provider(), a.ModelID(), assistant.WithID(r.assignedID))
	if err != nil {
		return nil, err
	}
	return r.Repository.Save(ctx, reassigned)
}

func TestCachedAssistantRepository_SaveInvalidatesAssignedID(t *testing.T) {
	assignedID := uuid.New()
	inner := &remappingAssistantRepo{
		Repository: persistence.NewInmemAssistantRepository(),
		assignedID: assignedID,
	}
	cache := services.NewCachedAssistantRepository(inner, time.Minute)
	ctx := context.Background()

	a, err := assistant.New("Helper", assistant.ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	saved, err := cache.Save(ctx, a)
	require.NoError(t, err)
	require.Equal(t, assignedID, saved.ID())

	// warm the cache under the repository-assigned id
	_, err = cache.GetByID(ctx, assignedID)
	require.NoError(t, err)

	updated, err := assistant.New("Helper v2", assistant.ProviderOpenAI, "gpt-4o")
	require.NoError(t, err)
	_, err = cache.Save(ctx, updated)
	require.NoError(t, err)

	// the saved entity's id, not the caller's, must have been invalidated
	got, err := cache.GetByID(ctx, assignedID)
	require.NoError(t, err)
	assert.Equal(t, "Helper v2", got.Name())
}

func TestCachedAssistantRepository_MissPassesThrough(t *testing.T) {
	inner := &countingAssistantRepo{Repository: persistence.NewInmemAssistantRepository()}
	cache := services.NewCachedAssistantRepository(inner, time.Minute)

	_, err := cache.GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, assistant.ErrAssistantNotFound)
}
