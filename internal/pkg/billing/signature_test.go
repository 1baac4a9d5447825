package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment.succeeded","created":1700000000}`)
	secret := "whsec_test_secret"

	t.Run("valid signature", func(t *testing.T) {
		sig := signPayload(payload, secret)
		assert.True(t, VerifyWebhookSignature(payload, sig, secret))
	})

	t.Run("uppercase hex and whitespace accepted", func(t *testing.T) {
		sig := signPayload(payload, secret)
		assert.True(t, VerifyWebhookSignature(payload, "  "+strings.ToUpper(sig)+"  ", secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := signPayload(payload, "other_secret")
		assert.False(t, VerifyWebhookSignature(payload, sig, secret))
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := signPayload(payload, secret)
		tampered := []byte(`{"id":"evt_1","type":"payment.succeeded","created":1700000001}`)
		assert.False(t, VerifyWebhookSignature(tampered, sig, secret))
	})

	t.Run("re-serialized payload fails", func(t *testing.T) {
		// Same JSON semantics, different bytes. The signature covers the raw
		// body, so this must not verify.
		sig := signPayload(payload, secret)
		pretty := []byte("{\n  \"id\": \"evt_1\",\n  \"type\": \"payment.succeeded\",\n  \"created\": 1700000000\n}")
		assert.False(t, VerifyWebhookSignature(pretty, sig, secret))
	})

	t.Run("missing signature", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature(payload, "", secret))
	})

	t.Run("missing secret", func(t *testing.T) {
		sig := signPayload(payload, secret)
		assert.False(t, VerifyWebhookSignature(payload, sig, ""))
	})

	t.Run("non-hex signature", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature(payload, "not-hex!!", secret))
	})
}
