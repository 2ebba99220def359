package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter_Framing(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, sse.Send("start", map[string]string{"state": "PENDING"}))
	require.NoError(t, sse.Send("content", map[string]string{"text": "Hel"}))
	require.NoError(t, sse.Send("content", map[string]string{"text": "lo"}))
	require.NoError(t, sse.Send("done", map[string]int{"tokens_used": 15}))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 4)
	assert.Equal(t, "event: start\ndata: {\"state\":\"PENDING\"}", frames[0])
	assert.Equal(t, "event: content\ndata: {\"text\":\"Hel\"}", frames[1])
	assert.Equal(t, "event: content\ndata: {\"text\":\"lo\"}", frames[2])
	assert.Equal(t, "event: done\ndata: {\"tokens_used\":15}", frames[3])
}

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := newSSEWriter(plainWriter{rec: httptest.NewRecorder()})
	require.Error(t, err)
}

// plainWriter exposes the recorder without its Flush method.
type plainWriter struct {
	rec *httptest.ResponseRecorder
}

func (w plainWriter) Header() http.Header        { return w.rec.Header() }
func (w plainWriter) Write(b []byte) (int, error) { return w.rec.Write(b) }
func (w plainWriter) WriteHeader(code int)       { w.rec.WriteHeader(code) }
