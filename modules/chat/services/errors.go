package services

import (
	"github.com/lucerna-ai/lucerna/pkg/serrors"
)

// Coded errors returned across the chat API boundary. Raw provider details
// never travel in these; they stay in logs.
var (
	ErrQuotaExceeded = serrors.NewError(
		"QUOTA_EXCEEDED",
		"token balance is too low to start a turn",
		"Chat.Errors.QuotaExceeded",
	)
	ErrProviderTimeout = serrors.NewError(
		"PROVIDER_TIMEOUT",
		"the model took too long to respond",
		"Chat.Errors.ProviderTimeout",
	)
	ErrProviderRejected = serrors.NewError(
		"PROVIDER_REJECTED",
		"the model provider rejected the request",
		"Chat.Errors.ProviderRejected",
	)
	ErrStaleThread = serrors.NewError(
		"STALE_THREAD",
		"the upstream thread is gone; retry the message",
		"Chat.Errors.StaleThread",
	)
	ErrConfiguration = serrors.NewError(
		"CONFIGURATION_ERROR",
		"the assistant is misconfigured",
		"Chat.Errors.Configuration",
	)
	ErrTurnInProgress = serrors.NewError(
		"TURN_IN_PROGRESS",
		"another turn is already running in this conversation",
		"Chat.Errors.TurnInProgress",
	)
	ErrConversationNotFound = serrors.NewError(
		"CONVERSATION_NOT_FOUND",
		"conversation not found",
		"Chat.Errors.ConversationNotFound",
	)
	ErrConversationArchived = serrors.NewError(
		"CONVERSATION_ARCHIVED",
		"conversation is archived",
		"Chat.Errors.ConversationArchived",
	)
	ErrAssistantNotFound = serrors.NewError(
		"ASSISTANT_NOT_FOUND",
		"assistant not found",
		"Chat.Errors.AssistantNotFound",
	)
	ErrAssistantDisabled = serrors.NewError(
		"ASSISTANT_DISABLED",
		"assistant is disabled",
		"Chat.Errors.AssistantDisabled",
	)
	ErrInvalidMessage = serrors.NewError(
		"INVALID_MESSAGE",
		"message is empty or too long",
		"Chat.Errors.InvalidMessage",
	)
)
