package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/billing/domain/entities/account"
)

type InmemAccountRepository struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*account.Account
}

func NewInmemAccountRepository() *InmemAccountRepository {
	return &InmemAccountRepository{
		accounts: make(map[uuid.UUID]*account.Account),
	}
}

func (r *InmemAccountRepository) get(subjectID uuid.UUID) *account.Account {
	a, ok := r.accounts[subjectID]
	if !ok {
		now := time.Now()
		a = &account.Account{
			SubjectID:   subjectID,
			PeriodStart: monthStart(now),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.accounts[subjectID] = a
	}
	return a
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (r *InmemAccountRepository) GetBySubject(_ context.Context, subjectID uuid.UUID) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[subjectID]; ok {
		return *a, nil
	}
	return account.Account{SubjectID: subjectID}, nil
}

func (r *InmemAccountRepository) Debit(_ context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	if tokens < 0 {
		return 0, account.ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.get(subjectID)
	now := time.Now()
	if a.PeriodStart.Before(monthStart(now)) {
		a.PeriodStart = monthStart(now)
		a.MonthlyUsed = 0
	}
	debit := tokens
	if debit > a.Balance {
		debit = a.Balance
	}
	a.Balance -= debit
	a.MonthlyUsed += tokens
	a.UpdatedAt = now
	return a.Balance, nil
}

func (r *InmemAccountRepository) Credit(_ context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	if tokens <= 0 {
		return 0, account.ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.get(subjectID)
	a.Balance += tokens
	a.UpdatedAt = time.Now()
	return a.Balance, nil
}
