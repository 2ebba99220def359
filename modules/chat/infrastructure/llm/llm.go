package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStaleThread marks a provider rejection caused by an invalid or
	// deleted upstream thread handle. The caller clears the stored handle
	// so the next turn recreates the thread.
	ErrStaleThread = errors.New("stale upstream thread")
	// ErrRunTimeout marks an assistant run that never reached a terminal
	// state within the polling budget.
	ErrRunTimeout = errors.New("assistant run polling timed out")
	// ErrNoCredentials marks a client constructed without an API key.
	ErrNoCredentials = errors.New("provider credentials missing")
)

// RejectedError is a terminal upstream failure: non-2xx response, failed or
// expired run. Raw provider details stay in Detail for logs only.
type RejectedError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected request (status %d)", e.Provider, e.Status)
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is the provider-neutral turn payload. Sampling pointers are nil
// when the assistant does not pin them; the client additionally drops any
// parameter the target model's capability set excludes.
type Request struct {
	ModelID          string
	Messages         []Message
	Temperature      *float64
	TopP             *float64
	MaxOutputTokens  *int64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
	ResponseFormat   string
	ReasoningEffort  string
	// ThreadHandle carries the upstream thread id for retrieval turns.
	// Empty means create one.
	ThreadHandle string
	// KnowledgeBaseID is the provider-side assistant id for retrieval turns.
	KnowledgeBaseID string
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

type Result struct {
	Content string
	Usage   Usage
	// ThreadHandle echoes the upstream thread used for a retrieval turn so
	// the caller can persist a newly created handle.
	ThreadHandle string
}

type EventType int

const (
	// EventContentDelta carries one incremental content fragment.
	EventContentDelta EventType = iota
	// EventUsageFinal terminates a successful stream with token counts.
	EventUsageFinal
	// EventError terminates a failed stream.
	EventError
)

// Event is one element of a streamed turn. The channel is closed after the
// terminal event (EventUsageFinal or EventError); zero-length content deltas
// are dropped at the client and never forwarded.
type Event struct {
	Type  EventType
	Delta string
	Usage Usage
	// ThreadHandle rides on the usage frame for retrieval turns, echoing the
	// upstream thread so a newly created handle can be persisted.
	ThreadHandle string
	Err          error
}

// Client is a single upstream inference backend.
type Client interface {
	Complete(ctx context.Context, req Request) (Result, error)
	Stream(ctx context.Context, req Request) (<-chan Event, error)
}
