package services_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
)

func mustAssistant(t *testing.T, opts ...assistant.Option) assistant.Assistant {
	t.Helper()
	a, err := assistant.New("Helper", assistant.ProviderOpenAI, "gpt-4o", opts...)
	require.NoError(t, err)
	return a
}

func historyOf(t *testing.T, convID uuid.UUID, n int) []conversation.Message {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	out := make([]conversation.Message, 0, n)
	for i := 0; i < n; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		m, err := conversation.NewMessage(
			convID, role, fmt.Sprintf("message %d", i),
			conversation.WithMessageCreatedAt(base.Add(time.Duration(i)*time.Minute)),
		)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestContextBuilder_Ordering(t *testing.T) {
	b := services.NewContextBuilder(12)
	a := mustAssistant(t, assistant.WithSystemPrompt("You are helpful."))
	history := historyOf(t, uuid.New(), 4)

	msgs := b.Build(a, history, "latest question")

	require.Len(t, msgs, 6)
	require.Equal(t, llm.RoleSystem, msgs[0].Role)
	require.Equal(t, "You are helpful.", msgs[0].Content)
	require.Equal(t, "message 0", msgs[1].Content)
	require.Equal(t, "message 3", msgs[4].Content)
	require.Equal(t, llm.RoleUser, msgs[5].Role)
	require.Equal(t, "latest question", msgs[5].Content)
}

func TestContextBuilder_WindowKeepsNewestAndUserTurn(t *testing.T) {
	b := services.NewContextBuilder(12)
	a := mustAssistant(t,
		assistant.WithSystemPrompt("prompt"),
		assistant.WithHistoryWindow(3),
	)
	history := historyOf(t, uuid.New(), 10)

	msgs := b.Build(a, history, "new turn")

	// system + 3 newest history + new user turn
	require.Len(t, msgs, 5)
	require.Equal(t, "message 7", msgs[1].Content)
	require.Equal(t, "message 9", msgs[3].Content)
	require.Equal(t, "new turn", msgs[4].Content)
}

func TestContextBuilder_SafetyClause(t *testing.T) {
	b := services.NewContextBuilder(12)

	filtered := mustAssistant(t,
		assistant.WithSystemPrompt("You are helpful."),
		assistant.WithContentFilter(true),
	)
	msgs := b.Build(filtered, nil, "hi")
	require.Contains(t, msgs[0].Content, "You are helpful.")
	require.Contains(t, msgs[0].Content, "refuse briefly")

	plain := mustAssistant(t, assistant.WithSystemPrompt("You are helpful."))
	msgs = b.Build(plain, nil, "hi")
	require.Equal(t, "You are helpful.", msgs[0].Content)
}

func TestContextBuilder_DefaultWindowFallback(t *testing.T) {
	b := services.NewContextBuilder(2)
	a := mustAssistant(t, assistant.WithSystemPrompt("prompt"))
	history := historyOf(t, uuid.New(), 6)

	msgs := b.Build(a, history, "new turn")

	require.Len(t, msgs, 4)
	require.Equal(t, "message 4", msgs[1].Content)
}
