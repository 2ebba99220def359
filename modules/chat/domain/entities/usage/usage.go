package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable ledger row: what a single turn cost, attributed to
// the subject who ran it. Rows are append-only; corrections are new rows.
type Entry struct {
	ID               uuid.UUID
	SubjectID        uuid.UUID
	SubjectKind      string
	ConversationID   uuid.UUID
	Provider         string
	ModelID          string
	PromptTokens     int64
	CompletionTokens int64
	CreatedAt        time.Time
}

func (e Entry) TotalTokens() int64 {
	return e.PromptTokens + e.CompletionTokens
}

// Report aggregates ledger rows for one subject over a period.
type Report struct {
	SubjectID        uuid.UUID
	From             time.Time
	To               time.Time
	Turns            int64
	PromptTokens     int64
	CompletionTokens int64
}

type Repository interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	Report(ctx context.Context, subjectID uuid.UUID, from, to time.Time) (Report, error)
}
