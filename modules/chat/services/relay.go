package services

import (
	"context"
	"strings"
	"time"

	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
	"github.com/lucerna-ai/lucerna/pkg/serrors"
)

type RelayState string

const (
	RelayPending   RelayState = "PENDING"
	RelayThinking  RelayState = "THINKING"
	RelayStreaming RelayState = "STREAMING"
	RelayCompleted RelayState = "COMPLETED"
	RelayCancelled RelayState = "CANCELLED"
	RelayFailed    RelayState = "FAILED"
)

// ErrStreamEnded marks a provider stream that closed without a terminal
// event. Treated as a failed turn so callers never hang waiting for done.
var ErrStreamEnded = serrors.NewError(
	"PROVIDER_REJECTED",
	"stream ended unexpectedly",
	"Chat.Errors.StreamEnded",
)

// DeltaSink receives content increments in arrival order. A sink error means
// the caller is gone and cancels the turn.
type DeltaSink func(delta string) error

// RelayOutcome is the single terminal result of a relayed turn. Content holds
// everything forwarded before the terminal transition, partial or complete.
// HasUsage reports whether the provider delivered a usage frame; Usage is
// zero otherwise.
type RelayOutcome struct {
	State    RelayState
	Content  string
	Usage    llm.Usage
	HasUsage bool
	// ThreadHandle echoes the upstream thread from the usage frame on
	// retrieval turns.
	ThreadHandle string
	Err          error
}

// Relay drives one provider event stream to exactly one terminal state:
//
//	PENDING → THINKING → STREAMING → {COMPLETED | CANCELLED | FAILED}
//
// Increments are forwarded in order, accumulated, and never re-forwarded
// after a terminal transition.
type Relay struct {
	timeout time.Duration
}

func NewRelay(timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Relay{timeout: timeout}
}

func (r *Relay) Run(ctx context.Context, events <-chan llm.Event, sink DeltaSink) RelayOutcome {
	var content strings.Builder

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	terminal := func(s RelayState, usage llm.Usage, hasUsage bool, threadHandle string, err error) RelayOutcome {
		return RelayOutcome{
			State:        s,
			Content:      content.String(),
			Usage:        usage,
			HasUsage:     hasUsage,
			ThreadHandle: threadHandle,
			Err:          err,
		}
	}

	for {
		select {
		case <-ctx.Done():
			return terminal(RelayCancelled, llm.Usage{}, false, "", ctx.Err())
		case <-timer.C:
			return terminal(RelayCancelled, llm.Usage{}, false, "", ErrProviderTimeout)
		case ev, ok := <-events:
			if !ok {
				return terminal(RelayFailed, llm.Usage{}, false, "", ErrStreamEnded)
			}
			switch ev.Type {
			case llm.EventContentDelta:
				content.WriteString(ev.Delta)
				if sink != nil {
					if err := sink(ev.Delta); err != nil {
						return terminal(RelayCancelled, llm.Usage{}, false, "", err)
					}
				}
			case llm.EventUsageFinal:
				return terminal(RelayCompleted, ev.Usage, true, ev.ThreadHandle, nil)
			case llm.EventError:
				return terminal(RelayFailed, llm.Usage{}, false, "", ev.Err)
			}
		}
	}
}
