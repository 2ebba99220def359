package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/billing/domain/entities/account"
	"github.com/lucerna-ai/lucerna/pkg/eventbus"
)

// BalanceCreditedEvent is published after a top-up lands on an account.
type BalanceCreditedEvent struct {
	SubjectID uuid.UUID
	Tokens    int64
	Balance   int64
}

// BillingService owns token accounts. It is the ground truth the chat quota
// guard checks against and settles into.
type BillingService struct {
	repo      account.Repository
	publisher eventbus.EventBus
}

func NewBillingService(repo account.Repository, publisher eventbus.EventBus) *BillingService {
	return &BillingService{repo: repo, publisher: publisher}
}

func (s *BillingService) Account(ctx context.Context, subjectID uuid.UUID) (account.Account, error) {
	return s.repo.GetBySubject(ctx, subjectID)
}

func (s *BillingService) Balance(ctx context.Context, subjectID uuid.UUID) (int64, error) {
	a, err := s.repo.GetBySubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

func (s *BillingService) Debit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	return s.repo.Debit(ctx, subjectID, tokens)
}

// Credit applies a top-up and announces the new balance.
func (s *BillingService) Credit(ctx context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	balance, err := s.repo.Credit(ctx, subjectID, tokens)
	if err != nil {
		return 0, err
	}
	if s.publisher != nil {
		s.publisher.Publish(BalanceCreditedEvent{
			SubjectID: subjectID,
			Tokens:    tokens,
			Balance:   balance,
		})
	}
	return balance, nil
}
