package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
)

// TokenAccounts is the balance store the quota guard settles against. Debit
// must be atomic per subject: decrement the balance (floored at zero) and
// bump the monthly counter as one update, returning the remaining balance.
type TokenAccounts interface {
	Balance(ctx context.Context, subjectID uuid.UUID) (int64, error)
	Debit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error)
}

// TxRunner wraps fn in a transaction. Production wiring passes
// composables.InTx; tests pass a pass-through.
type TxRunner = func(ctx context.Context, fn func(ctx context.Context) error) error

// QuotaService guards turns against the subject's token balance.
//
// CheckSufficient is advisory: a stale read is fine because Settle is the
// only writer of ground truth. Settle runs exactly once per billable turn,
// never on a pre-flight rejection, and is never skipped once tokens are
// known, even when the client has already gone away.
type QuotaService struct {
	accounts  TokenAccounts
	ledger    usage.Repository
	threshold int64
	inTx      TxRunner
}

func NewQuotaService(accounts TokenAccounts, ledger usage.Repository, threshold int64, inTx TxRunner) *QuotaService {
	return &QuotaService{
		accounts:  accounts,
		ledger:    ledger,
		threshold: threshold,
		inTx:      inTx,
	}
}

// CheckSufficient rejects the turn before any provider call when the balance
// is below the configured threshold.
func (s *QuotaService) CheckSufficient(ctx context.Context, subjectID uuid.UUID) error {
	balance, err := s.accounts.Balance(ctx, subjectID)
	if err != nil {
		return errors.Wrap(err, "failed to read token balance")
	}
	if balance < s.threshold {
		return ErrQuotaExceeded
	}
	return nil
}

// Settle debits the turn's tokens and appends the ledger row in one
// transaction. Returns the remaining balance.
func (s *QuotaService) Settle(ctx context.Context, e usage.Entry) (int64, error) {
	var remaining int64
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		remaining, err = s.accounts.Debit(txCtx, e.SubjectID, e.TotalTokens())
		if err != nil {
			return errors.Wrap(err, "failed to debit token account")
		}
		if _, err := s.ledger.Append(txCtx, e); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Balance exposes the current balance for API responses.
func (s *QuotaService) Balance(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	return s.accounts.Balance(ctx, subjectID)
}

// Report aggregates the subject's ledger over a period.
func (s *QuotaService) Report(ctx context.Context, subjectID uuid.UUID, from, to time.Time) (usage.Report, error) {
	return s.ledger.Report(ctx, subjectID, from, to)
}
