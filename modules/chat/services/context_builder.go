package services

import (
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
)

// safetyClause is appended to the system prompt when the assistant has its
// content filter enabled.
const safetyClause = "Decline to produce content that is hateful, sexual, violent or otherwise unsafe. If a request is unsafe, refuse briefly and offer a safe alternative."

// ContextBuilder assembles the ordered provider message list for one turn:
// exactly one system message, the most recent history window in chronological
// order, and the new user turn last.
type ContextBuilder struct {
	defaultWindow int
}

func NewContextBuilder(defaultWindow int) *ContextBuilder {
	if defaultWindow <= 0 {
		defaultWindow = 12
	}
	return &ContextBuilder{defaultWindow: defaultWindow}
}

func (b *ContextBuilder) Window(a assistant.Assistant) int {
	if a.HistoryWindow() > 0 {
		return a.HistoryWindow()
	}
	return b.defaultWindow
}

// Build returns the message list for a turn. history must be in chronological
// order and must NOT include userText; the window is applied to history
// before the new turn is appended, so the user message is never evicted.
func (b *ContextBuilder) Build(a assistant.Assistant, history []conversation.Message, userText string) []llm.Message {
	window := b.Window(a)
	if len(history) > window {
		history = history[len(history)-window:]
	}

	out := make([]llm.Message, 0, len(history)+2)
	prompt := a.SystemPrompt()
	if a.ContentFilterEnabled() {
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += safetyClause
	}
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: prompt})

	for _, m := range history {
		role := llm.RoleUser
		if m.Role() == conversation.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content()})
	}

	return append(out, llm.Message{Role: llm.RoleUser, Content: userText})
}
