package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	HeaderWebhookID        = "Webhook-Id"
	HeaderWebhookTimestamp = "Webhook-Timestamp"
	HeaderWebhookSignature = "Webhook-Signature"
)

// VerifyWebhookSignature checks a Replicate-style webhook signature: an
// HMAC-SHA256 over "id.timestamp.body" keyed with the base64 part of the
// shared secret. The signature header may list several space-separated
// "v1,<base64>" entries; any constant-time match passes.
func VerifyWebhookSignature(secret string, id, timestamp string, body []byte, signatureHeader string) error {
	if id == "" || timestamp == "" || signatureHeader == "" {
		return fmt.Errorf("missing webhook signature headers")
	}

	key, err := webhookKey(secret)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(signatureHeader) {
		candidate := entry
		if idx := strings.IndexByte(entry, ','); idx >= 0 {
			candidate = entry[idx+1:]
		}
		delivered, err := base64.StdEncoding.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(delivered, expected) {
			return nil
		}
	}
	return fmt.Errorf("webhook signature mismatch")
}

func webhookKey(secret string) ([]byte, error) {
	trimmed := strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		// Secrets issued outside the provider's console are plain strings.
		return []byte(trimmed), nil
	}
	return key, nil
}
