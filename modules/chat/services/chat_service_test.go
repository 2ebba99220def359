package services_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/persistence"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/eventbus"
)

// scriptedClient replays a fixed event sequence as a provider stream.
type scriptedClient struct {
	events    []llm.Event
	streamErr error
	// release, when set, delays the terminal event until closed. Used to
	// hold a turn open for concurrency tests.
	release chan struct{}

	mu           sync.Mutex
	lastRequest  llm.Request
	threadsFreed []string
	requestsSeen int
}

func (c *scriptedClient) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	return llm.Result{}, c.streamErr
}

func (c *scriptedClient) Stream(ctx context.Context, req llm.Request) (<-chan llm.Event, error) {
	c.mu.Lock()
	c.lastRequest = req
	c.requestsSeen++
	c.mu.Unlock()
	if c.streamErr != nil {
		return nil, c.streamErr
	}

	out := make(chan llm.Event)
	go func() {
		defer close(out)
		for i, ev := range c.events {
			if c.release != nil && i == len(c.events)-1 {
				select {
				case <-c.release:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *scriptedClient) DeleteThread(_ context.Context, handle string) error {
	c.mu.Lock()
	c.threadsFreed = append(c.threadsFreed, handle)
	c.mu.Unlock()
	return nil
}

type chatFixture struct {
	svc       *services.ChatService
	accounts  *fakeAccounts
	ledger    *persistence.InmemUsageRepository
	convRepo  *persistence.InmemConversationRepository
	assistant assistant.Assistant
	subject   uuid.UUID
	completed []services.TurnCompletedEvent
	failed    []services.TurnFailedEvent
	mu        sync.Mutex
}

func newChatFixture(t *testing.T, client *scriptedClient, opts ...assistant.Option) *chatFixture {
	return newChatFixtureRepo(t, client, nil, opts...)
}

// newChatFixtureRepo lets a test wrap the conversation repository, e.g. to
// inject write failures.
func newChatFixtureRepo(t *testing.T, client *scriptedClient, wrap func(conversation.Repository) conversation.Repository, opts ...assistant.Option) *chatFixture {
	t.Helper()

	f := &chatFixture{
		accounts: newFakeAccounts(),
		ledger:   persistence.NewInmemUsageRepository(),
		convRepo: persistence.NewInmemConversationRepository(),
		subject:  uuid.New(),
	}
	f.accounts.balances[f.subject] = 5000

	assistantRepo := persistence.NewInmemAssistantRepository()
	a, err := assistant.New("Helper", assistant.ProviderOpenAI, "gpt-4o", opts...)
	require.NoError(t, err)
	_, err = assistantRepo.Save(context.Background(), a)
	require.NoError(t, err)
	f.assistant = a

	log := logrus.New()
	log.SetOutput(io.Discard)
	bus := eventbus.NewEventPublisher(log)
	bus.Subscribe(func(ev services.TurnCompletedEvent) {
		f.mu.Lock()
		f.completed = append(f.completed, ev)
		f.mu.Unlock()
	})
	bus.Subscribe(func(ev services.TurnFailedEvent) {
		f.mu.Lock()
		f.failed = append(f.failed, ev)
		f.mu.Unlock()
	})

	var repo conversation.Repository = f.convRepo
	if wrap != nil {
		repo = wrap(f.convRepo)
	}
	f.svc = services.NewChatService(
		services.NewConversationService(repo, 50, passthroughTx),
		services.NewCachedAssistantRepository(assistantRepo, time.Minute),
		services.NewQuotaService(f.accounts, f.ledger, 100, passthroughTx),
		services.NewContextBuilder(12),
		services.NewRelay(time.Minute),
		services.ClientSet{OpenAI: client, DeepSeek: client, Retrieval: client},
		bus,
	)
	return f
}

func (f *chatFixture) ctx() context.Context {
	return composables.WithSubject(context.Background(), composables.Subject{
		ID:   f.subject,
		Kind: composables.SubjectUser,
	})
}

func (f *chatFixture) newConversation(t *testing.T) conversation.Conversation {
	t.Helper()
	conv, err := f.svc.CreateConversation(f.ctx(), f.assistant.ID())
	require.NoError(t, err)
	return conv
}

func TestChatService_CompletedTurn(t *testing.T) {
	client := &scriptedClient{events: []llm.Event{
		{Type: llm.EventContentDelta, Delta: "Go is "},
		{Type: llm.EventContentDelta, Delta: "a language."},
		{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}},
	}}
	f := newChatFixture(t, client)
	conv := f.newConversation(t)

	var deltas []string
	result, err := f.svc.StreamMessage(f.ctx(), conv.ID(), "What is Go?", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, services.RelayCompleted, result.State)
	assert.Equal(t, []string{"Go is ", "a language."}, deltas)
	require.NotNil(t, result.Message)
	assert.Equal(t, "Go is a language.", result.Message.Content())
	assert.Equal(t, int64(15), result.TokensUsed)
	assert.Equal(t, int64(4985), result.TokensBalance)

	// title derived from the first user message
	require.NotNil(t, result.Conversation.Title())
	assert.Equal(t, "What is Go?", *result.Conversation.Title())

	// exactly one ledger row
	require.Len(t, f.ledger.Entries(), 1)
	assert.Equal(t, int64(15), f.ledger.Entries()[0].TotalTokens())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.completed, 1)
	assert.Empty(t, f.failed)
}

func TestChatService_PreFlightRejectionLeavesNoTrace(t *testing.T) {
	client := &scriptedClient{}
	f := newChatFixture(t, client)
	conv := f.newConversation(t)
	f.accounts.balances[f.subject] = 50

	_, err := f.svc.SendMessage(f.ctx(), conv.ID(), "hello")
	require.ErrorIs(t, err, services.ErrQuotaExceeded)

	assert.Equal(t, 0, f.convRepo.MessageCount(conv.ID()))
	assert.Empty(t, f.ledger.Entries())
	assert.Equal(t, 0, client.requestsSeen)
}

func TestChatService_CancelledTurnKeepsPartialAndSettles(t *testing.T) {
	client := &scriptedClient{
		events: []llm.Event{
			{Type: llm.EventContentDelta, Delta: "Hel"},
			{Type: llm.EventContentDelta, Delta: "lo"},
			{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 9, CompletionTokens: 9}},
		},
		release: make(chan struct{}),
	}
	f := newChatFixture(t, client)
	conv := f.newConversation(t)

	ctx, cancel := context.WithCancel(f.ctx())
	seen := 0
	result, err := f.svc.StreamMessage(ctx, conv.ID(), "say hello", func(d string) error {
		seen++
		if seen == 2 {
			cancel()
		}
		return nil
	})
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, services.RelayCancelled, result.State)
	require.NotNil(t, result.Message)
	assert.Equal(t, "Hello", result.Message.Content())

	// settlement still ran once with the usage known at cancellation (none)
	require.Len(t, f.ledger.Entries(), 1)
	assert.Equal(t, int64(0), f.ledger.Entries()[0].TotalTokens())
	assert.Equal(t, int64(5000), f.accounts.balances[f.subject])

	// user + partial assistant message both persisted
	assert.Equal(t, 2, f.convRepo.MessageCount(conv.ID()))
}

func TestChatService_FailedBeforeOutputAbortsTurn(t *testing.T) {
	client := &scriptedClient{events: []llm.Event{
		{Type: llm.EventError, Err: &llm.RejectedError{Provider: "openai", Status: 500, Detail: "boom"}},
	}}
	f := newChatFixture(t, client)
	conv := f.newConversation(t)

	result, err := f.svc.SendMessage(f.ctx(), conv.ID(), "doomed")
	require.ErrorIs(t, err, services.ErrProviderRejected)
	require.NotNil(t, result)
	assert.Equal(t, services.RelayFailed, result.State)
	assert.Nil(t, result.Message)

	// no orphan user message, no settlement
	assert.Equal(t, 0, f.convRepo.MessageCount(conv.ID()))
	assert.Empty(t, f.ledger.Entries())
	// no title either
	got, err := f.convRepo.GetByID(context.Background(), conv.ID())
	require.NoError(t, err)
	assert.Nil(t, got.Title())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.failed, 1)
	assert.Equal(t, "PROVIDER_REJECTED", f.failed[0].Code)
}

// brokenWriteRepo rejects assistant-message writes so bookkeeping runs with a
// broken store.
type brokenWriteRepo struct {
	conversation.Repository
}

func (r *brokenWriteRepo) AddMessage(ctx context.Context, m conversation.Message) (conversation.Message, error) {
	if m.Role() == conversation.RoleAssistant {
		return nil, errors.New("storage write refused")
	}
	return r.Repository.AddMessage(ctx, m)
}

func TestChatService_SettlesWhenAssistantWriteFails(t *testing.T) {
	client := &scriptedClient{events: []llm.Event{
		{Type: llm.EventContentDelta, Delta: "hi"},
		{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}},
	}}
	f := newChatFixtureRepo(t, client, func(inner conversation.Repository) conversation.Repository {
		return &brokenWriteRepo{Repository: inner}
	})
	conv := f.newConversation(t)

	result, err := f.svc.SendMessage(f.ctx(), conv.ID(), "hello")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Nil(t, result.Message)

	// usage was reported, so the turn settles exactly once even though the
	// assistant message never landed
	require.Len(t, f.ledger.Entries(), 1)
	assert.Equal(t, int64(15), f.ledger.Entries()[0].TotalTokens())
	assert.Equal(t, int64(4985), f.accounts.balances[f.subject])
	assert.Equal(t, int64(15), result.TokensUsed)
	assert.Equal(t, int64(4985), result.TokensBalance)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.completed)
	require.Len(t, f.failed, 1)
}

func TestChatService_RunTimeoutMapsToProviderTimeout(t *testing.T) {
	client := &scriptedClient{events: []llm.Event{
		{Type: llm.EventError, Err: llm.ErrRunTimeout},
	}}
	f := newChatFixture(t, client, assistant.WithKnowledgeBaseID("asst_123"))
	conv := f.newConversation(t)

	result, err := f.svc.SendMessage(f.ctx(), conv.ID(), "slow retrieval")
	require.ErrorIs(t, err, services.ErrProviderTimeout)
	require.NotNil(t, result)
	assert.Equal(t, services.RelayFailed, result.State)
	assert.Nil(t, result.Message)

	// no orphan user message, no settlement
	assert.Equal(t, 0, f.convRepo.MessageCount(conv.ID()))
	assert.Empty(t, f.ledger.Entries())

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.failed, 1)
	assert.Equal(t, "PROVIDER_TIMEOUT", f.failed[0].Code)
}

func TestChatService_StaleThreadClearsHandle(t *testing.T) {
	client := &scriptedClient{events: []llm.Event{
		{Type: llm.EventError, Err: llm.ErrStaleThread},
	}}
	f := newChatFixture(t, client, assistant.WithKnowledgeBaseID("asst_123"))
	conv := f.newConversation(t)
	require.NoError(t, f.convRepo.SetThreadHandle(context.Background(), conv.ID(), "thread_dead"))

	_, err := f.svc.SendMessage(f.ctx(), conv.ID(), "retrieve something")
	require.ErrorIs(t, err, services.ErrStaleThread)

	got, err := f.convRepo.GetByID(context.Background(), conv.ID())
	require.NoError(t, err)
	assert.Empty(t, got.ThreadHandle())
}

func TestChatService_RetrievalTurnPersistsNewThreadHandle(t *testing.T) {
	client := &scriptedClient{events: []llm.Event{
		{Type: llm.EventContentDelta, Delta: "grounded answer"},
		{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 20, CompletionTokens: 10}, ThreadHandle: "thread_new"},
	}}
	f := newChatFixture(t, client, assistant.WithKnowledgeBaseID("asst_123"))
	conv := f.newConversation(t)

	result, err := f.svc.SendMessage(f.ctx(), conv.ID(), "retrieve something")
	require.NoError(t, err)
	assert.Equal(t, services.RelayCompleted, result.State)
	assert.Equal(t, "thread_new", result.Conversation.ThreadHandle())
}

func TestChatService_SingleFlightPerConversation(t *testing.T) {
	client := &scriptedClient{
		events: []llm.Event{
			{Type: llm.EventContentDelta, Delta: "slow"},
			{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 1, CompletionTokens: 1}},
		},
		release: make(chan struct{}),
	}
	f := newChatFixture(t, client)
	conv := f.newConversation(t)

	firstStarted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.StreamMessage(f.ctx(), conv.ID(), "first", func(string) error {
			close(firstStarted)
			return nil
		})
		done <- err
	}()

	<-firstStarted
	_, err := f.svc.SendMessage(f.ctx(), conv.ID(), "second")
	require.ErrorIs(t, err, services.ErrTurnInProgress)

	close(client.release)
	require.NoError(t, <-done)

	// the slot frees up after the first turn finishes
	_, err = f.svc.SendMessage(f.ctx(), conv.ID(), "third")
	require.NoError(t, err)
}

func TestChatService_PurgeReleasesThread(t *testing.T) {
	client := &scriptedClient{}
	f := newChatFixture(t, client, assistant.WithKnowledgeBaseID("asst_123"))
	conv := f.newConversation(t)
	require.NoError(t, f.convRepo.SetThreadHandle(context.Background(), conv.ID(), "thread_live"))

	require.NoError(t, f.svc.PurgeConversation(f.ctx(), conv.ID()))

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []string{"thread_live"}, client.threadsFreed)

	_, err := f.convRepo.GetByID(context.Background(), conv.ID())
	require.ErrorIs(t, err, conversation.ErrConversationNotFound)
}

func TestChatService_ForeignConversationIsInvisible(t *testing.T) {
	client := &scriptedClient{}
	f := newChatFixture(t, client)
	conv := f.newConversation(t)

	stranger := composables.WithSubject(context.Background(), composables.Subject{
		ID:   uuid.New(),
		Kind: composables.SubjectUser,
	})
	_, err := f.svc.GetConversation(stranger, conv.ID())
	require.ErrorIs(t, err, services.ErrConversationNotFound)

	_, err = f.svc.SendMessage(stranger, conv.ID(), "hi")
	require.ErrorIs(t, err, services.ErrConversationNotFound)
}
