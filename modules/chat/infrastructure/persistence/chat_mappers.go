package persistence

import (
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence/models"
)

func ToDBAssistant(a assistant.Assistant) *models.Assistant {
	return &models.Assistant{
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

func ToDomainAssistant(m *models.Assistant) (assistant.Assistant, error) {
	return assistant.New(
		m.Name,
		assistant.Provider(m.Provider),
		m.ModelID,
		assistant.WithID(m.ID),
		assistant.WithSystemPrompt(m.SystemPrompt),
		assistant.WithTemperature(m.Temperature),
		assistant.WithTopP(m.TopP),
		assistant.WithMaxOutputTokens(m.MaxOutputTokens),
		assistant.WithFrequencyPenalty(m.FrequencyPenalty),
		assistant.WithPresencePenalty(m.PresencePenalty),
		assistant.WithStopSequences(m.StopSequences),
		assistant.WithResponseFormat(m.ResponseFormat),
		assistant.WithReasoningEffort(m.ReasoningEffort),
		assistant.WithContentFilter(m.ContentFilterEnabled),
		assistant.WithKnowledgeBaseID(m.KnowledgeBaseID),
		assistant.WithHistoryWindow(m.HistoryWindow),
		assistant.WithEnabled(m.Enabled),
		assistant.WithCreatedAt(m.CreatedAt),
		assistant.WithUpdatedAt(m.UpdatedAt),
	)
}

func ToDBConversation(c conversation.Conversation) *models.Conversation {
	return &models.Conversation{
		ID:               c.ID(),
		OwnerID:          c.OwnerID(),
		OwnerKind:        string(c.OwnerKind()),
		AssistantID:      c.AssistantID(),
		Title:            c.Title(),
		ThreadHandle:     c.ThreadHandle(),
		MessageCount:     c.MessageCount(),
		PromptTokens:     c.PromptTokens(),
		CompletionTokens: c.CompletionTokens(),
		LastMessageAt:    c.LastMessageAt(),
		Archived:         c.Archived(),
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
}

func ToDomainConversation(m *models.Conversation) conversation.Conversation {
	return conversation.New(
		m.OwnerID,
		conversation.OwnerKind(m.OwnerKind),
		m.AssistantID,
		conversation.WithID(m.ID),
		conversation.WithTitle(m.Title),
		conversation.WithThreadHandle(m.ThreadHandle),
		conversation.WithCounters(m.MessageCount, m.PromptTokens, m.CompletionTokens),
		conversation.WithLastMessageAt(m.LastMessageAt),
		conversation.WithArchived(m.Archived),
		conversation.WithCreatedAt(m.CreatedAt),
		conversation.WithUpdatedAt(m.UpdatedAt),
	)
}

func ToDBMessage(m conversation.Message) *models.Message {
	return &models.Message{
		ID:               m.ID(),
		ConversationID:   m.ConversationID(),
		Role:             string(m.Role()),
		Content:          m.Content(),
		PromptTokens:     m.PromptTokens(),
		CompletionTokens: m.CompletionTokens(),
		Provider:         m.Provider(),
		ModelID:          m.ModelID(),
		CreatedAt:        m.CreatedAt(),
	}
}

func ToDomainMessage(m *models.Message) (conversation.Message, error) {
	return conversation.NewMessage(
		m.ConversationID,
		conversation.Role(m.Role),
		m.Content,
		conversation.WithMessageID(m.ID),
		conversation.WithUsage(m.PromptTokens, m.CompletionTokens),
		conversation.WithModel(m.Provider, m.ModelID),
		conversation.WithMessageCreatedAt(m.CreatedAt),
	)
}

func ToDBUsageEntry(e usage.Entry) *models.UsageEntry {
	return &models.UsageEntry{
		ID:               e.ID,
		SubjectID:        e.SubjectID,
		SubjectKind:      e.SubjectKind,
		ConversationID:   e.ConversationID,
		Provider:         e.Provider,
		ModelID:          e.ModelID,
		PromptTokens:     e.PromptTokens,
		CompletionTokens: e.CompletionTokens,
		CreatedAt:        e.CreatedAt,
	}
}

func ToDomainUsageEntry(m *models.UsageEntry) usage.Entry {
	return usage.Entry{
		ID:               m.ID,
		SubjectID:        m.SubjectID,
		SubjectKind:      m.SubjectKind,
		ConversationID:   m.ConversationID,
		Provider:         m.Provider,
		ModelID:          m.ModelID,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		CreatedAt:        m.CreatedAt,
	}
}
