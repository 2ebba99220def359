package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
)

// fakeAccounts mirrors the billing account semantics: debit floors at zero
// and tracks the monthly counter.
type fakeAccounts struct {
	mu          sync.Mutex
	balances    map[uuid.UUID]int64
	monthlyUsed map[uuid.UUID]int64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		balances:    make(map[uuid.UUID]int64),
		monthlyUsed: make(map[uuid.UUID]int64),
	}
}

func (f *fakeAccounts) Balance(_ context.Context, subjectID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[subjectID], nil
}

func (f *fakeAccounts) Debit(_ context.Context, subjectID uuid.UUID, tokens int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	debit := tokens
	if debit > f.balances[subjectID] {
		debit = f.balances[subjectID]
	}
	f.balances[subjectID] -= debit
	f.monthlyUsed[subjectID] += tokens
	return f.balances[subjectID], nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestQuotaService_CheckSufficient(t *testing.T) {
	accounts := newFakeAccounts()
	svc := services.NewQuotaService(accounts, persistence.NewInmemUsageRepository(), 100, passthroughTx)

	subject := uuid.New()
	accounts.balances[subject] = 99
	require.ErrorIs(t, svc.CheckSufficient(context.Background(), subject), services.ErrQuotaExceeded)

	accounts.balances[subject] = 100
	require.NoError(t, svc.CheckSufficient(context.Background(), subject))
}

func TestQuotaService_SettleDebitsAndAppendsLedger(t *testing.T) {
	accounts := newFakeAccounts()
	ledger := persistence.NewInmemUsageRepository()
	svc := services.NewQuotaService(accounts, ledger, 100, passthroughTx)

	subject := uuid.New()
	accounts.balances[subject] = 5000

	remaining, err := svc.Settle(context.Background(), usage.Entry{
		SubjectID:        subject,
		SubjectKind:      "user",
		ConversationID:   uuid.New(),
		Provider:         "openai",
		ModelID:          "gpt-4o",
		PromptTokens:     10,
		CompletionTokens: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4985), remaining)

	entries := ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(10), entries[0].PromptTokens)
	assert.Equal(t, int64(5), entries[0].CompletionTokens)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.Equal(t, int64(15), accounts.monthlyUsed[subject])
}

func TestQuotaService_SettleFloorsBalanceAtZero(t *testing.T) {
	accounts := newFakeAccounts()
	svc := services.NewQuotaService(accounts, persistence.NewInmemUsageRepository(), 100, passthroughTx)

	subject := uuid.New()
	accounts.balances[subject] = 3

	remaining, err := svc.Settle(context.Background(), usage.Entry{
		SubjectID:        subject,
		PromptTokens:     10,
		CompletionTokens: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
	// monthly usage still records what the turn cost
	assert.Equal(t, int64(20), accounts.monthlyUsed[subject])
}

func TestQuotaService_Report(t *testing.T) {
	accounts := newFakeAccounts()
	ledger := persistence.NewInmemUsageRepository()
	svc := services.NewQuotaService(accounts, ledger, 100, passthroughTx)

	subject := uuid.New()
	accounts.balances[subject] = 1000
	for i := 0; i < 3; i++ {
		_, err := svc.Settle(context.Background(), usage.Entry{
			SubjectID:        subject,
			PromptTokens:     100,
			CompletionTokens: 50,
		})
		require.NoError(t, err)
	}

	report, err := svc.Report(context.Background(), subject, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Turns)
	assert.Equal(t, int64(300), report.PromptTokens)
	assert.Equal(t, int64(150), report.CompletionTokens)
}
