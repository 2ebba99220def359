package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lucerna-ai/lucerna/pkg/httpapi"
)

// SignatureVerifier authenticates an inbound webhook against its raw body.
type SignatureVerifier interface {
	Verify(ctx context.Context, r *http.Request, body []byte) error
}

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	errBodyTooLarge     = errors.New("webhook payload too large")
)

// HMACVerifier checks a hex-encoded HMAC-SHA256 of the body carried in a
// request header.
type HMACVerifier struct {
	Secret []byte
	Header string
}

func NewHMACVerifier(secret, header string) *HMACVerifier {
	return &HMACVerifier{Secret: []byte(secret), Header: header}
}

func (v *HMACVerifier) Verify(_ context.Context, r *http.Request, body []byte) error {
	signature := r.Header.Get(v.Header)
	if signature == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Middleware verifies the signature of every request passing through it and
// restores the body for downstream handlers.
func Middleware(verifier SignatureVerifier, maxBodyBytes int64) mux.MiddlewareFunc {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1024 * 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				_ = httpapi.WriteError(w, http.StatusInternalServerError,
					"WEBHOOK_MISCONFIGURED", "webhook middleware misconfigured", nil)
				return
			}

			body, err := readAndRestoreBody(r, maxBodyBytes)
			if err != nil {
				status := http.StatusBadRequest
				code := "WEBHOOK_BAD_REQUEST"
				if errors.Is(err, errBodyTooLarge) {
					status = http.StatusRequestEntityTooLarge
					code = "WEBHOOK_PAYLOAD_TOO_LARGE"
				}
				_ = httpapi.WriteError(w, status, code, "invalid webhook payload", nil)
				return
			}

			if err := verifier.Verify(r.Context(), r, body); err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized,
					"WEBHOOK_UNAUTHORIZED", "invalid webhook signature", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readAndRestoreBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	limited := io.LimitReader(r.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errBodyTooLarge
	}

	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
