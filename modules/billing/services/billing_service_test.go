package services_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/modules/billing/domain/entities/account"
	"github.com/lucerna-ai/lucerna/modules/billing/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/billing/services"
	"github.com/lucerna-ai/lucerna/pkg/eventbus"
)

func newBillingService() *services.BillingService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return services.NewBillingService(persistence.NewInmemAccountRepository(), eventbus.NewEventPublisher(log))
}

func TestBillingService_CreditAndBalance(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()
	subject := uuid.New()

	balance, err := svc.Balance(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	balance, err = svc.Credit(ctx, subject, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	balance, err = svc.Credit(ctx, subject, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), balance)
}

func TestBillingService_DebitFloorsAtZero(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()
	subject := uuid.New()

	_, err := svc.Credit(ctx, subject, 10)
	require.NoError(t, err)

	balance, err := svc.Debit(ctx, subject, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	a, err := svc.Account(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, int64(25), a.MonthlyUsed)
}

func TestBillingService_CreditRejectsNonPositive(t *testing.T) {
	svc := newBillingService()
	_, err := svc.Credit(context.Background(), uuid.New(), 0)
	require.ErrorIs(t, err, account.ErrInvalidAmount)
	_, err = svc.Credit(context.Background(), uuid.New(), -5)
	require.ErrorIs(t, err, account.ErrInvalidAmount)
}

func TestBillingService_ConcurrentDebitsDoNotLoseUpdates(t *testing.T) {
	svc := newBillingService()
	ctx := context.Background()
	subject := uuid.New()

	_, err := svc.Credit(ctx, subject, 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dErr := svc.Debit(ctx, subject, 10)
			assert.NoError(t, dErr)
		}()
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)
}
