package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lucerna-ai/lucerna/modules/billing/domain/entities/account"
	"github.com/lucerna-ai/lucerna/pkg/composables"
)

const (
	selectAccountQuery = `
		SELECT subject_id, balance, monthly_used, period_start, created_at, updated_at
		FROM token_accounts
		WHERE subject_id = $1`

	// The debit is one statement: floor the balance at zero, roll the
	// monthly counter over when a new month has started, and report the
	// remaining balance. Row-level locking inside UPDATE serializes
	// concurrent turns from the same subject.
	debitAccountQuery = `
		INSERT INTO token_accounts (subject_id, balance, monthly_used, period_start)
		VALUES ($1, 0, $2, date_trunc('month', now()))
		ON CONFLICT (subject_id) DO UPDATE SET
			balance = token_accounts.balance - LEAST(token_accounts.balance, $2),
			monthly_used = CASE
				WHEN token_accounts.period_start < date_trunc('month', now()) THEN $2
				ELSE token_accounts.monthly_used + $2
			END,
			period_start = GREATEST(token_accounts.period_start, date_trunc('month', now())),
			updated_at = now()
		RETURNING balance`

	creditAccountQuery = `
		INSERT INTO token_accounts (subject_id, balance, monthly_used, period_start)
		VALUES ($1, $2, 0, date_trunc('month', now()))
		ON CONFLICT (subject_id) DO UPDATE SET
			balance = token_accounts.balance + $2,
			updated_at = now()
		RETURNING balance`
)

type PgAccountRepository struct{}

func NewPgAccountRepository() account.Repository {
	return &PgAccountRepository{}
}

func (r *PgAccountRepository) GetBySubject(ctx context.Context, subjectID uuid.UUID) (account.Account, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return account.Account{}, err
	}
	var a account.Account
	err = tx.QueryRow(ctx, selectAccountQuery, subjectID).Scan(
		&a.SubjectID, &a.Balance, &a.MonthlyUsed, &a.PeriodStart, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Account{SubjectID: subjectID}, nil
	}
	if err != nil {
		return account.Account{}, errors.Wrap(err, "failed to query token account")
	}
	return a, nil
}

func (r *PgAccountRepository) Debit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	if tokens < 0 {
		return 0, account.ErrInvalidAmount
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := tx.QueryRow(ctx, debitAccountQuery, subjectID, tokens).Scan(&balance); err != nil {
		return 0, errors.Wrap(err, "failed to debit token account")
	}
	return balance, nil
}

func (r *PgAccountRepository) Credit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	if tokens <= 0 {
		return 0, account.ErrInvalidAmount
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := tx.QueryRow(ctx, creditAccountQuery, subjectID, tokens).Scan(&balance); err != nil {
		return 0, errors.Wrap(err, "failed to credit token account")
	}
	return balance, nil
}
