package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
)

func newConversationFixture(t *testing.T) (*services.ConversationService, *persistence.InmemConversationRepository, conversation.Conversation) {
	t.Helper()
	repo := persistence.NewInmemConversationRepository()
	svc := services.NewConversationService(repo, 50, passthroughTx)
	conv, err := svc.Create(context.Background(), uuid.New(), conversation.OwnerUser, uuid.New())
	require.NoError(t, err)
	return svc, repo, conv
}

func TestConversationService_TurnLifecycle(t *testing.T) {
	svc, _, conv := newConversationFixture(t)
	ctx := context.Background()

	userMsg, err := svc.StartTurn(ctx, conv.ID(), "What is Go?")
	require.NoError(t, err)
	require.Equal(t, conversation.RoleUser, userMsg.Role())

	assistantMsg, err := svc.CompleteTurn(ctx, conv.ID(), "Go is a language.", "openai", "gpt-4o", 10, 5)
	require.NoError(t, err)
	require.Equal(t, conversation.RoleAssistant, assistantMsg.Role())
	assert.Equal(t, int64(10), assistantMsg.PromptTokens())
	assert.Equal(t, int64(5), assistantMsg.CompletionTokens())

	got, err := svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount())
	assert.Equal(t, int64(10), got.PromptTokens())
	assert.Equal(t, int64(5), got.CompletionTokens())
	require.NotNil(t, got.LastMessageAt())

	history, err := svc.History(ctx, conv.ID(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "What is Go?", history[0].Content())
	assert.Equal(t, "Go is a language.", history[1].Content())
}

func TestConversationService_AbortTurnRemovesUserMessage(t *testing.T) {
	svc, repo, conv := newConversationFixture(t)
	ctx := context.Background()

	userMsg, err := svc.StartTurn(ctx, conv.ID(), "doomed turn")
	require.NoError(t, err)
	require.Equal(t, 1, repo.MessageCount(conv.ID()))

	require.NoError(t, svc.AbortTurn(ctx, userMsg.ID()))
	assert.Equal(t, 0, repo.MessageCount(conv.ID()))

	got, err := svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	assert.Equal(t, 0, got.MessageCount())
}

func TestConversationService_EnsureTitle(t *testing.T) {
	svc, _, conv := newConversationFixture(t)
	ctx := context.Background()

	set, err := svc.EnsureTitle(ctx, conv.ID(), "How do goroutines work?")
	require.NoError(t, err)
	assert.True(t, set)

	got, err := svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	require.NotNil(t, got.Title())
	assert.Equal(t, "How do goroutines work?", *got.Title())

	// second write loses
	set, err = svc.EnsureTitle(ctx, conv.ID(), "a different title")
	require.NoError(t, err)
	assert.False(t, set)

	got, err = svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	assert.Equal(t, "How do goroutines work?", *got.Title())
}

func TestConversationService_EnsureTitleTruncates(t *testing.T) {
	svc, _, conv := newConversationFixture(t)
	ctx := context.Background()

	long := strings.Repeat("word ", 30)
	set, err := svc.EnsureTitle(ctx, conv.ID(), long)
	require.NoError(t, err)
	require.True(t, set)

	got, err := svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	require.NotNil(t, got.Title())
	assert.LessOrEqual(t, len([]rune(*got.Title())), 51)
	assert.True(t, strings.HasSuffix(*got.Title(), "…"))
}

func TestConversationService_EnsureTitleConcurrent(t *testing.T) {
	svc, _, conv := newConversationFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := svc.EnsureTitle(ctx, conv.ID(), "concurrent title")
			assert.NoError(t, err)
			wins[i] = set
		}(i)
	}
	wg.Wait()

	won := 0
	for _, w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)

	got, err := svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	require.NotNil(t, got.Title())
	assert.Equal(t, "concurrent title", *got.Title())
}

func TestConversationService_ThreadHandleRoundTrip(t *testing.T) {
	svc, _, conv := newConversationFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SetThreadHandle(ctx, conv.ID(), "thread_abc"))
	got, err := svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", got.ThreadHandle())

	require.NoError(t, svc.ClearThreadHandle(ctx, conv.ID()))
	got, err = svc.GetByID(ctx, conv.ID())
	require.NoError(t, err)
	assert.Empty(t, got.ThreadHandle())
}

func TestConversationService_DeleteHidesConversation(t *testing.T) {
	svc, _, conv := newConversationFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, conv.ID()))
	_, err := svc.GetByID(ctx, conv.ID())
	require.ErrorIs(t, err, conversation.ErrConversationNotFound)
}
