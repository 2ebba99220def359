package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lucerna-ai/lucerna/modules/chat/infrastructure/llm"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
)

func feedEvents(events ...llm.Event) <-chan llm.Event {
	ch := make(chan llm.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestRelay_Completed(t *testing.T) {
	relay := services.NewRelay(time.Minute)

	var forwarded []string
	outcome := relay.Run(context.Background(), feedEvents(
		llm.Event{Type: llm.EventContentDelta, Delta: "Hel"},
		llm.Event{Type: llm.EventContentDelta, Delta: "lo"},
		llm.Event{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 5}},
	), func(delta string) error {
		forwarded = append(forwarded, delta)
		return nil
	})

	assert.Equal(t, services.RelayCompleted, outcome.State)
	assert.Equal(t, "Hello", outcome.Content)
	assert.True(t, outcome.HasUsage)
	assert.Equal(t, int64(10), outcome.Usage.PromptTokens)
	assert.Equal(t, int64(5), outcome.Usage.CompletionTokens)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, []string{"Hel", "lo"}, forwarded)
}

func TestRelay_FailedBeforeContent(t *testing.T) {
	relay := services.NewRelay(time.Minute)
	upstream := errors.New("boom")

	outcome := relay.Run(context.Background(), feedEvents(
		llm.Event{Type: llm.EventError, Err: upstream},
	), nil)

	assert.Equal(t, services.RelayFailed, outcome.State)
	assert.Empty(t, outcome.Content)
	assert.False(t, outcome.HasUsage)
	assert.ErrorIs(t, outcome.Err, upstream)
}

func TestRelay_FailedAfterPartialContent(t *testing.T) {
	relay := services.NewRelay(time.Minute)

	outcome := relay.Run(context.Background(), feedEvents(
		llm.Event{Type: llm.EventContentDelta, Delta: "partial"},
		llm.Event{Type: llm.EventError, Err: errors.New("connection reset")},
	), func(string) error { return nil })

	assert.Equal(t, services.RelayFailed, outcome.State)
	assert.Equal(t, "partial", outcome.Content)
	assert.False(t, outcome.HasUsage)
}

func TestRelay_CancelledKeepsPartialContent(t *testing.T) {
	relay := services.NewRelay(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan llm.Event)
	go func() {
		events <- llm.Event{Type: llm.EventContentDelta, Delta: "Hel"}
		events <- llm.Event{Type: llm.EventContentDelta, Delta: "lo"}
		cancel()
		// channel intentionally left open; the relay must exit on ctx alone
	}()

	outcome := relay.Run(ctx, events, func(string) error { return nil })

	assert.Equal(t, services.RelayCancelled, outcome.State)
	assert.Equal(t, "Hello", outcome.Content)
	assert.False(t, outcome.HasUsage)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}

func TestRelay_SinkErrorCancels(t *testing.T) {
	relay := services.NewRelay(time.Minute)
	disconnect := errors.New("client gone")

	outcome := relay.Run(context.Background(), feedEvents(
		llm.Event{Type: llm.EventContentDelta, Delta: "Hel"},
		llm.Event{Type: llm.EventContentDelta, Delta: "lo"},
		llm.Event{Type: llm.EventUsageFinal, Usage: llm.Usage{PromptTokens: 1, CompletionTokens: 1}},
	), func(delta string) error {
		if delta == "lo" {
			return disconnect
		}
		return nil
	})

	assert.Equal(t, services.RelayCancelled, outcome.State)
	assert.Equal(t, "Hello", outcome.Content)
	assert.ErrorIs(t, outcome.Err, disconnect)
}

func TestRelay_MissingTerminalIsFailed(t *testing.T) {
	relay := services.NewRelay(time.Minute)

	outcome := relay.Run(context.Background(), feedEvents(
		llm.Event{Type: llm.EventContentDelta, Delta: "half a resp"},
	), nil)

	assert.Equal(t, services.RelayFailed, outcome.State)
	assert.Equal(t, "half a resp", outcome.Content)
	assert.ErrorIs(t, outcome.Err, services.ErrStreamEnded)
}

func TestRelay_TimeoutCancels(t *testing.T) {
	relay := services.NewRelay(20 * time.Millisecond)
	events := make(chan llm.Event) // never delivers

	outcome := relay.Run(context.Background(), events, nil)

	assert.Equal(t, services.RelayCancelled, outcome.State)
	assert.ErrorIs(t, outcome.Err, services.ErrProviderTimeout)
}
