package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c Conversation) (Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (Conversation, error)
	// List returns the owner's live conversations, most recent activity first.
	List(ctx context.Context, ownerID uuid.UUID, ownerKind OwnerKind) ([]Conversation, error)
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SetThreadHandle(ctx context.Context, id uuid.UUID, handle string) error
	// SetTitleIfEmpty writes title only when none is set yet and reports
	// whether the write happened. Loser of a race sees false, nil.
	SetTitleIfEmpty(ctx context.Context, id uuid.UUID, title string) (bool, error)
	// ApplyTurnUsage bumps the rolling counters and last activity marker.
	ApplyTurnUsage(ctx context.Context, id uuid.UUID, promptTokens, completionTokens int64, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	HardDelete(ctx context.Context, id uuid.UUID) error

	AddMessage(ctx context.Context, m Message) (Message, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	// ListMessages returns the newest limit messages in chronological order.
	// limit <= 0 returns everything.
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)
}
