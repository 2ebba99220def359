package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
)

// ConversationService owns conversation and message persistence plus the
// race-safe title derivation for first turns.
type ConversationService struct {
	repo        conversation.Repository
	titleLength int
	inTx        TxRunner
}

func NewConversationService(repo conversation.Repository, titleLength int, inTx TxRunner) *ConversationService {
	if titleLength <= 0 {
		titleLength = 50
	}
	return &ConversationService{
		repo:        repo,
		titleLength: titleLength,
		inTx:        inTx,
	}
}

func (s *ConversationService) Create(ctx context.Context, ownerID uuid.UUID, ownerKind conversation.OwnerKind, assistantID uuid.UUID) (conversation.Conversation, error) {
	return s.repo.Create(ctx, conversation.New(ownerID, ownerKind, assistantID))
}

func (s *ConversationService) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ConversationService) List(ctx context.Context, ownerID uuid.UUID, ownerKind conversation.OwnerKind) ([]conversation.Conversation, error) {
	return s.repo.List(ctx, ownerID, ownerKind)
}

func (s *ConversationService) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	return s.repo.ListMessages(ctx, conversationID, limit)
}

// StartTurn persists the user's message before any provider call so a crash
// mid-turn never loses user input. AbortTurn removes it again when the turn
// dies without producing any assistant output.
func (s *ConversationService) StartTurn(ctx context.Context, conversationID uuid.UUID, userText string) (conversation.Message, error) {
	msg, err := conversation.NewMessage(conversationID, conversation.RoleUser, userText)
	if err != nil {
		return nil, err
	}
	return s.repo.AddMessage(ctx, msg)
}

// CompleteTurn persists the assistant message and folds the turn's usage into
// the conversation counters in one transaction.
func (s *ConversationService) CompleteTurn(ctx context.Context, conversationID uuid.UUID, content, provider, modelID string, promptTokens, completionTokens int64) (conversation.Message, error) {
	msg, err := conversation.NewMessage(
		conversationID,
		conversation.RoleAssistant,
		content,
		conversation.WithUsage(promptTokens, completionTokens),
		conversation.WithModel(provider, modelID),
	)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.AddMessage(txCtx, msg); err != nil {
			return err
		}
		return s.repo.ApplyTurnUsage(txCtx, conversationID, promptTokens, completionTokens, msg.CreatedAt())
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to complete turn")
	}
	return msg, nil
}

func (s *ConversationService) AbortTurn(ctx context.Context, userMessageID uuid.UUID) error {
	return s.repo.DeleteMessage(ctx, userMessageID)
}

// EnsureTitle derives the conversation title from the first user message.
// The write is a single conditional update, so concurrent first turns settle
// on exactly one title.
func (s *ConversationService) EnsureTitle(ctx context.Context, conversationID uuid.UUID, firstUserText string) (bool, error) {
	title := deriveTitle(firstUserText, s.titleLength)
	if title == "" {
		return false, nil
	}
	return s.repo.SetTitleIfEmpty(ctx, conversationID, title)
}

func deriveTitle(text string, maxLen int) string {
	title := strings.Join(strings.Fields(text), " ")
	runes := []rune(title)
	if len(runes) > maxLen {
		title = strings.TrimSpace(string(runes[:maxLen])) + "…"
	}
	return title
}

func (s *ConversationService) SetThreadHandle(ctx context.Context, conversationID uuid.UUID, handle string) error {
	return s.repo.SetThreadHandle(ctx, conversationID, handle)
}

// ClearThreadHandle drops a stale upstream handle so the next turn recreates
// the thread.
func (s *ConversationService) ClearThreadHandle(ctx context.Context, conversationID uuid.UUID) error {
	return s.repo.SetThreadHandle(ctx, conversationID, "")
}

func (s *ConversationService) SetArchived(ctx context.Context, conversationID uuid.UUID, archived bool) error {
	return s.repo.SetArchived(ctx, conversationID, archived)
}

func (s *ConversationService) Delete(ctx context.Context, conversationID uuid.UUID) error {
	return s.repo.SoftDelete(ctx, conversationID)
}

// Purge removes the conversation and its messages permanently. Releasing the
// upstream thread is the dispatcher's job since it owns provider clients.
func (s *ConversationService) Purge(ctx context.Context, conversationID uuid.UUID) error {
	return s.repo.HardDelete(ctx, conversationID)
}
