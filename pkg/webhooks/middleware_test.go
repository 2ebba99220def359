package webhooks_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-ai/lucerna/pkg/webhooks"
)

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newRouter(secret string) (*mux.Router, *string) {
	var seen string
	r := mux.NewRouter()
	sub := r.PathPrefix("/webhooks").Subrouter()
	sub.Use(webhooks.Middleware(webhooks.NewHMACVerifier(secret, "X-Signature"), 1024))
	sub.HandleFunc("/topup", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)
	return r, &seen
}

func TestWebhookMiddleware_ValidSignature(t *testing.T) {
	t.Parallel()

	router, seen := newRouter("topsecret")
	body := `{"amount":100}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/topup", strings.NewReader(body))
	req.Header.Set("X-Signature", sign("topsecret", body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// The handler must see the body the verifier consumed.
	assert.Equal(t, body, *seen)
}

func TestWebhookMiddleware_RejectsBadSignature(t *testing.T) {
	t.Parallel()

	router, _ := newRouter("topsecret")
	body := `{"amount":100}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/topup", strings.NewReader(body))
	req.Header.Set("X-Signature", sign("wrong-secret", body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMiddleware_RejectsMissingSignature(t *testing.T) {
	t.Parallel()

	router, _ := newRouter("topsecret")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/topup", strings.NewReader("{}"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMiddleware_RejectsOversizedBody(t *testing.T) {
	t.Parallel()

	router, _ := newRouter("topsecret")
	body := strings.Repeat("x", 2048)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/topup", strings.NewReader(body))
	req.Header.Set("X-Signature", sign("topsecret", body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
