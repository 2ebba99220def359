package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPollingStub(t *testing.T, status string, polls *int32) *AssistantClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(polls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"run_1","object":"thread.run","status":%q}`, status)
	}))
	t.Cleanup(srv.Close)

	return NewAssistantClient(AssistantClientConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL + "/v1",
		PollInterval: time.Millisecond,
		PollAttempts: 3,
	})
}

func TestAssistantClient_RunPollingTimesOut(t *testing.T) {
	t.Parallel()

	var polls int32
	c := newPollingStub(t, "in_progress", &polls)

	_, err := c.waitForRun(context.Background(), "thread_1", "run_1")
	require.ErrorIs(t, err, ErrRunTimeout)
	// the poll budget is exhausted, not overshot
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestAssistantClient_RunPollingStopsOnCancel(t *testing.T) {
	t.Parallel()

	var polls int32
	c := newPollingStub(t, "in_progress", &polls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.waitForRun(ctx, "thread_1", "run_1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&polls))
}

func TestAssistantClient_FailedRunIsRejected(t *testing.T) {
	t.Parallel()

	var polls int32
	c := newPollingStub(t, "failed", &polls)

	_, err := c.waitForRun(context.Background(), "thread_1", "run_1")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "openai-assistants", rejected.Provider)
	assert.Equal(t, int32(1), atomic.LoadInt32(&polls))
}
