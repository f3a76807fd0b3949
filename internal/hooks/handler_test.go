package hooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"slideflow/internal/security"
)

const testWebhookSecret = "whsec_dGVzdC13ZWJob29rLXNlY3JldA=="

type recordingReconciler struct {
	events []WebhookEvent
	err    error
}

func (r *recordingReconciler) Reconcile(_ context.Context, event WebhookEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func signedRequest(t *testing.T, secret string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/replicate", strings.NewReader(body))

	id := "msg_test_1"
	timestamp := "1700000000"
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set(security.HeaderWebhookID, id)
	req.Header.Set(security.HeaderWebhookTimestamp, timestamp)
	req.Header.Set(security.HeaderWebhookSignature, "v1,"+signature)
	return req
}

func serveWebhook(handler *WebhookHandler, req *http.Request) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/webhooks/replicate", handler.Handle)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookValidSignature(t *testing.T) {
	reconciler := &recordingReconciler{}
	handler := NewWebhookHandler(testWebhookSecret, reconciler, zerolog.Nop())

	body := `{"id":"pred-1","status":"succeeded","output":"https://replicate.delivery/out.mp4"}`
	rec := serveWebhook(handler, signedRequest(t, testWebhookSecret, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(reconciler.events) != 1 {
		t.Fatalf("reconciled %d events, want 1", len(reconciler.events))
	}
	event := reconciler.events[0]
	if event.PredictionID != "pred-1" || event.Status != "succeeded" || event.OutputURL != "https://replicate.delivery/out.mp4" {
		t.Fatalf("parsed event = %+v", event)
	}
}

func TestWebhookBadSignatureRejectedBeforeLookup(t *testing.T) {
	reconciler := &recordingReconciler{}
	handler := NewWebhookHandler(testWebhookSecret, reconciler, zerolog.Nop())

	body := `{"id":"pred-1","status":"succeeded"}`
	req := signedRequest(t, testWebhookSecret, body)
	req.Header.Set(security.HeaderWebhookSignature, "v1,"+base64.StdEncoding.EncodeToString([]byte("forged-signature-bytes!!")))
	rec := serveWebhook(handler, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(reconciler.events) != 0 {
		t.Fatalf("reconciler invoked despite bad signature")
	}
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	reconciler := &recordingReconciler{}
	handler := NewWebhookHandler(testWebhookSecret, reconciler, zerolog.Nop())

	req := signedRequest(t, testWebhookSecret, `{"id":"pred-1","status":"succeeded"}`)
	req.Body = io.NopCloser(strings.NewReader(`{"id":"pred-1","status":"failed"}`))
	rec := serveWebhook(handler, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(reconciler.events) != 0 {
		t.Fatalf("reconciler invoked despite tampered body")
	}
}

func TestWebhookMissingHeadersRejected(t *testing.T) {
	reconciler := &recordingReconciler{}
	handler := NewWebhookHandler(testWebhookSecret, reconciler, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/replicate", strings.NewReader(`{"id":"pred-1"}`))
	rec := serveWebhook(handler, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookNoSecretSkipsVerification(t *testing.T) {
	reconciler := &recordingReconciler{}
	handler := NewWebhookHandler("", reconciler, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/replicate",
		strings.NewReader(`{"id":"pred-1","status":"failed","error":"boom"}`))
	rec := serveWebhook(handler, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(reconciler.events) != 1 {
		t.Fatalf("reconciled %d events, want 1", len(reconciler.events))
	}
}

func TestWebhookUnparseablePayloadAcknowledged(t *testing.T) {
	reconciler := &recordingReconciler{}
	handler := NewWebhookHandler("", reconciler, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/replicate", strings.NewReader("not json"))
	rec := serveWebhook(handler, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (never trigger provider retries)", rec.Code)
	}
	if len(reconciler.events) != 0 {
		t.Fatalf("reconciler invoked for garbage payload")
	}
}

func TestWebhookReconcilerErrorStillAcknowledged(t *testing.T) {
	reconciler := &recordingReconciler{err: fmt.Errorf("db down")}
	handler := NewWebhookHandler("", reconciler, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/replicate",
		strings.NewReader(`{"id":"pred-1","status":"succeeded"}`))
	rec := serveWebhook(handler, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
