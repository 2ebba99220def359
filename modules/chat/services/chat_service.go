package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/assistant"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/conversation"
	"github.com/lucerna-ai/lucerna/modules/chat/domain/entities/usage"
	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/eventbus"
	"github.com/lucerna-ai/lucerna/pkg/serrors"
)

// RetrievalClient is a provider backend that additionally owns upstream
// thread resources.
type RetrievalClient interface {
	llm.Client
	DeleteThread(ctx context.Context, handle string) error
}

// ClientSet holds the configured provider backends. A nil entry means the
// provider has no credentials; turns routed to it fail with a configuration
// error instead of a silent misroute.
type ClientSet struct {
	OpenAI    llm.Client
	DeepSeek  llm.Client
	Retrieval RetrievalClient
}

// TurnCompletedEvent is published after a turn's bookkeeping finished with a
// persisted assistant message.
type TurnCompletedEvent struct {
	ConversationID   uuid.UUID
	SubjectID        uuid.UUID
	Provider         string
	ModelID          string
	State            RelayState
	PromptTokens     int64
	CompletionTokens int64
	Duration         time.Duration
}

// TurnFailedEvent is published after a failed or cancelled turn's
// bookkeeping finished.
type TurnFailedEvent struct {
	ConversationID uuid.UUID
	SubjectID      uuid.UUID
	Provider       string
	ModelID        string
	State          RelayState
	Code           string
}

// TurnResult is the terminal payload of a turn. Message is nil when the turn
// died before producing any assistant output.
type TurnResult struct {
	Conversation  conversation.Conversation
	Message       conversation.Message
	State         RelayState
	TokensUsed    int64
	TokensBalance int64
}

// ChatService dispatches turns: quota pre-check, context assembly, provider
// routing, relay, then exactly one bookkeeping pass per turn regardless of
// how the stream ended.
type ChatService struct {
	conversations *ConversationService
	assistants    assistant.Repository
	quota         *QuotaService
	builder       *ContextBuilder
	relay         *Relay
	clients       ClientSet
	publisher     eventbus.EventBus

	flightsMu sync.Mutex
	flights   map[uuid.UUID]struct{}
}

func NewChatService(
	conversations *ConversationService,
	assistants assistant.Repository,
	quota *QuotaService,
	builder *ContextBuilder,
	relay *Relay,
	clients ClientSet,
	publisher eventbus.EventBus,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		assistants:    assistants,
		quota:         quota,
		builder:       builder,
		relay:         relay,
		clients:       clients,
		publisher:     publisher,
		flights:       make(map[uuid.UUID]struct{}),
	}
}

// acquireFlight claims the conversation's single turn slot without blocking.
func (s *ChatService) acquireFlight(conversationID uuid.UUID) error {
	s.flightsMu.Lock()
	defer s.flightsMu.Unlock()
	if _, busy := s.flights[conversationID]; busy {
		return ErrTurnInProgress
	}
	s.flights[conversationID] = struct{}{}
	return nil
}

func (s *ChatService) releaseFlight(conversationID uuid.UUID) {
	s.flightsMu.Lock()
	delete(s.flights, conversationID)
	s.flightsMu.Unlock()
}

func (s *ChatService) CreateConversation(ctx context.Context, assistantID uuid.UUID) (conversation.Conversation, error) {
	subject, err := composables.UseSubject(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.assistants.GetByID(ctx, assistantID)
	if err != nil {
		if errors.Is(err, assistant.ErrAssistantNotFound) {
			return nil, ErrAssistantNotFound
		}
		return nil, err
	}
	if !a.Enabled() {
		return nil, ErrAssistantDisabled
	}
	return s.conversations.Create(ctx, subject.ID, conversation.OwnerKind(subject.Kind), assistantID)
}

func (s *ChatService) ListConversations(ctx context.Context) ([]conversation.Conversation, error) {
	subject, err := composables.UseSubject(ctx)
	if err != nil {
		return nil, err
	}
	return s.conversations.List(ctx, subject.ID, conversation.OwnerKind(subject.Kind))
}

// GetConversation loads a conversation the caller owns. A foreign or deleted
// conversation is indistinguishable from a missing one.
func (s *ChatService) GetConversation(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	subject, err := composables.UseSubject(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, conversation.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.OwnerID() != subject.ID || conv.OwnerKind() != conversation.OwnerKind(subject.Kind) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *ChatService) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.conversations.History(ctx, conversationID, limit)
}

func (s *ChatService) ArchiveConversation(ctx context.Context, id uuid.UUID, archived bool) error {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return err
	}
	return s.conversations.SetArchived(ctx, id, archived)
}

func (s *ChatService) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetConversation(ctx, id); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, id)
}

// PurgeConversation removes the conversation permanently and releases its
// upstream thread, if any.
func (s *ChatService) PurgeConversation(ctx context.Context, id uuid.UUID) error {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if handle := conv.ThreadHandle(); handle != "" && s.clients.Retrieval != nil {
		if err := s.clients.Retrieval.DeleteThread(ctx, handle); err != nil {
			composables.UseLogger(ctx).WithError(err).
				WithField("conversation_id", id).
				Warn("failed to release upstream thread")
		}
	}
	return s.conversations.Purge(ctx, id)
}

// SendMessage runs a buffered turn: the full pipeline without a delta sink.
func (s *ChatService) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*TurnResult, error) {
	return s.StreamMessage(ctx, conversationID, content, nil)
}

// StreamMessage runs one turn end to end. Deltas are forwarded to sink in
// order as they arrive; the returned result is the turn's single terminal
// outcome. Bookkeeping (message persistence, settlement, title) runs exactly
// once even when ctx is already cancelled by the time the stream ends.
func (s *ChatService) StreamMessage(ctx context.Context, conversationID uuid.UUID, content string, sink DeltaSink) (*TurnResult, error) {
	subject, err := composables.UseSubject(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.acquireFlight(conversationID); err != nil {
		return nil, err
	}
	defer s.releaseFlight(conversationID)

	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Archived() {
		return nil, ErrConversationArchived
	}

	a, err := s.assistants.GetByID(ctx, conv.AssistantID())
	if err != nil {
		if errors.Is(err, assistant.ErrAssistantNotFound) {
			return nil, ErrConfiguration
		}
		return nil, err
	}
	if !a.Enabled() {
		return nil, ErrAssistantDisabled
	}

	// Pre-flight rejection happens before anything is persisted or any
	// provider call is made; no settlement ever follows it.
	if err := s.quota.CheckSufficient(ctx, subject.ID); err != nil {
		return nil, err
	}

	history, err := s.conversations.History(ctx, conversationID, s.builder.Window(a))
	if err != nil {
		return nil, err
	}

	userMsg, err := s.conversations.StartTurn(ctx, conversationID, content)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyMessage) || errors.Is(err, conversation.ErrMessageTooLong) {
			return nil, ErrInvalidMessage
		}
		return nil, err
	}

	client, err := s.resolveClient(a)
	if err != nil {
		s.abortQuietly(ctx, conv, userMsg)
		return nil, err
	}

	req := buildProviderRequest(a, s.builder.Build(a, history, content), conv.ThreadHandle())

	started := time.Now()
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := client.Stream(streamCtx, req)
	if err != nil {
		s.abortQuietly(ctx, conv, userMsg)
		return nil, s.mapProviderError(ctx, conv, err)
	}

	outcome := s.relay.Run(streamCtx, events, sink)
	return s.finishTurn(ctx, subject, conv, a, userMsg, content, outcome, started)
}

// finishTurn is the single bookkeeping pass. It runs on a context detached
// from cancellation so a gone caller cannot skip settlement.
func (s *ChatService) finishTurn(
	ctx context.Context,
	subject composables.Subject,
	conv conversation.Conversation,
	a assistant.Assistant,
	userMsg conversation.Message,
	userText string,
	outcome RelayOutcome,
	started time.Time,
) (*TurnResult, error) {
	bookCtx := context.WithoutCancel(ctx)
	log := composables.UseLogger(bookCtx).WithFields(map[string]interface{}{
		"conversation_id": conv.ID(),
		"provider":        string(a.Provider()),
		"model_id":        a.ModelID(),
		"state":           string(outcome.State),
	})

	if outcome.ThreadHandle != "" && outcome.ThreadHandle != conv.ThreadHandle() {
		if err := s.conversations.SetThreadHandle(bookCtx, conv.ID(), outcome.ThreadHandle); err != nil {
			log.WithError(err).Error("failed to persist upstream thread handle")
		}
	}

	var assistantMsg conversation.Message
	var persistErr error
	if outcome.Content != "" {
		msg, err := s.conversations.CompleteTurn(
			bookCtx, conv.ID(), outcome.Content,
			string(a.Provider()), a.ModelID(),
			outcome.Usage.PromptTokens, outcome.Usage.CompletionTokens,
		)
		if err != nil {
			// The provider already produced tokens; settlement below must
			// still run even though the message write failed.
			persistErr = errors.Wrap(err, "failed to persist assistant message")
			log.WithError(err).Error("failed to persist assistant message")
		} else {
			assistantMsg = msg
		}
	} else {
		// No assistant output at all: remove the dangling user message.
		if err := s.conversations.AbortTurn(bookCtx, userMsg.ID()); err != nil {
			log.WithError(err).Error("failed to abort turn")
		}
	}

	result := &TurnResult{Message: assistantMsg, State: outcome.State}

	// A turn is billable once it produced content or reported usage.
	// Pre-flight rejections never reach this point.
	if outcome.Content != "" || outcome.HasUsage {
		remaining, err := s.quota.Settle(bookCtx, usage.Entry{
			SubjectID:        subject.ID,
			SubjectKind:      string(subject.Kind),
			ConversationID:   conv.ID(),
			Provider:         string(a.Provider()),
			ModelID:          a.ModelID(),
			PromptTokens:     outcome.Usage.PromptTokens,
			CompletionTokens: outcome.Usage.CompletionTokens,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to settle turn usage")
		}
		result.TokensUsed = outcome.Usage.PromptTokens + outcome.Usage.CompletionTokens
		result.TokensBalance = remaining
	}

	if outcome.State == RelayCompleted && persistErr == nil {
		if _, err := s.conversations.EnsureTitle(bookCtx, conv.ID(), userText); err != nil {
			log.WithError(err).Error("failed to set conversation title")
		}
	}

	fresh, err := s.conversations.GetByID(bookCtx, conv.ID())
	if err == nil {
		result.Conversation = fresh
	} else {
		result.Conversation = conv
	}

	if outcome.State == RelayCompleted && persistErr == nil {
		s.publisher.Publish(TurnCompletedEvent{
			ConversationID:   conv.ID(),
			SubjectID:        subject.ID,
			Provider:         string(a.Provider()),
			ModelID:          a.ModelID(),
			State:            outcome.State,
			PromptTokens:     outcome.Usage.PromptTokens,
			CompletionTokens: outcome.Usage.CompletionTokens,
			Duration:         time.Since(started),
		})
		return result, nil
	}

	turnErr := s.mapProviderError(bookCtx, conv, outcome.Err)
	if turnErr == nil {
		turnErr = persistErr
	}
	code := "UNKNOWN"
	if base, ok := errCode(turnErr); ok {
		code = base
	}
	s.publisher.Publish(TurnFailedEvent{
		ConversationID: conv.ID(),
		SubjectID:      subject.ID,
		Provider:       string(a.Provider()),
		ModelID:        a.ModelID(),
		State:          outcome.State,
		Code:           code,
	})
	log.WithError(turnErr).Info("turn ended without completion")
	return result, turnErr
}

func (s *ChatService) abortQuietly(ctx context.Context, conv conversation.Conversation, userMsg conversation.Message) {
	bookCtx := context.WithoutCancel(ctx)
	if err := s.conversations.AbortTurn(bookCtx, userMsg.ID()); err != nil {
		composables.UseLogger(bookCtx).WithError(err).
			WithField("conversation_id", conv.ID()).
			Error("failed to abort turn")
	}
}

// resolveClient routes an assistant to its provider backend.
func (s *ChatService) resolveClient(a assistant.Assistant) (llm.Client, error) {
	switch a.Provider() {
	case assistant.ProviderDeepSeek:
		if s.clients.DeepSeek == nil {
			return nil, ErrConfiguration
		}
		return s.clients.DeepSeek, nil
	case assistant.ProviderOpenAI:
		if a.KnowledgeBaseID() != "" {
			if s.clients.Retrieval == nil {
				return nil, ErrConfiguration
			}
			return s.clients.Retrieval, nil
		}
		if s.clients.OpenAI == nil {
			return nil, ErrConfiguration
		}
		return s.clients.OpenAI, nil
	default:
		return nil, ErrConfiguration
	}
}

// mapProviderError translates transport-layer failures to coded errors. A
// stale retrieval thread additionally clears the stored handle so the next
// turn recreates it.
func (s *ChatService) mapProviderError(ctx context.Context, conv conversation.Conversation, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, llm.ErrStaleThread):
		bookCtx := context.WithoutCancel(ctx)
		if clearErr := s.conversations.ClearThreadHandle(bookCtx, conv.ID()); clearErr != nil {
			composables.UseLogger(bookCtx).WithError(clearErr).
				WithField("conversation_id", conv.ID()).
				Error("failed to clear stale thread handle")
		}
		return ErrStaleThread
	case errors.Is(err, llm.ErrRunTimeout), errors.Is(err, ErrProviderTimeout):
		return ErrProviderTimeout
	case errors.Is(err, llm.ErrNoCredentials):
		return ErrConfiguration
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		var rejected *llm.RejectedError
		if errors.As(err, &rejected) {
			return ErrProviderRejected
		}
		if _, ok := serrors.AsBase(err); ok {
			return err
		}
		return ErrProviderRejected
	}
}

func errCode(err error) (string, bool) {
	base, ok := serrors.AsBase(err)
	if !ok {
		return "", false
	}
	return base.Code, true
}

// buildProviderRequest snapshots the assistant's sampling configuration into
// a provider-neutral request. Capability stripping happens inside the client.
func buildProviderRequest(a assistant.Assistant, messages []llm.Message, threadHandle string) llm.Request {
	return llm.Request{
		ModelID:          a.ModelID(),
		Messages:         messages,
		Temperature:      a.Temperature(),
		TopP:             a.TopP(),
		MaxOutputTokens:  a.MaxOutputTokens(),
		FrequencyPenalty: a.FrequencyPenalty(),
		PresencePenalty:  a.PresencePenalty(),
		Stop:             a.StopSequences(),
		ResponseFormat:   a.ResponseFormat(),
		ReasoningEffort:  a.ReasoningEffort(),
		ThreadHandle:     threadHandle,
		KnowledgeBaseID:  a.KnowledgeBaseID(),
	}
}
