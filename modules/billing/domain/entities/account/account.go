package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Account is one subject's token balance. Balance never goes negative;
// MonthlyUsed accumulates within the period starting at PeriodStart and
// resets when a new month begins.
type Account struct {
	SubjectID   uuid.UUID
	Balance     int64
	MonthlyUsed int64
	PeriodStart time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository mutates accounts with single atomic statements per subject so
// concurrent turns from the same subject never lose updates.
type Repository interface {
	// GetBySubject returns a zero-balance account for unknown subjects.
	GetBySubject(ctx context.Context, subjectID uuid.UUID) (Account, error)
	// Debit subtracts tokens from the balance, flooring at zero, and adds
	// the full amount to the monthly counter. Returns the remaining balance.
	Debit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error)
	// Credit adds tokens to the balance, creating the account if needed.
	Credit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error)
}
