package hooks

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"slideflow/internal/security"
)

type EventReconciler interface {
	Reconcile(ctx context.Context, event WebhookEvent) error
}

// WebhookHandler is the HTTP face of the reconciler. Apart from a bad
// signature it always acknowledges with 200: a non-2xx would only trigger
// the provider's retry storm against failures already contained here.
type WebhookHandler struct {
	secret     string
	reconciler EventReconciler
	log        zerolog.Logger
}

func NewWebhookHandler(secret string, reconciler EventReconciler, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:     secret,
		reconciler: reconciler,
		log:        log,
	}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	// No configured secret means verification is skipped, a deliberate
	// local/dev posture.
	if h.secret != "" {
		err := security.VerifyWebhookSignature(h.secret,
			c.GetHeader(security.HeaderWebhookID),
			c.GetHeader(security.HeaderWebhookTimestamp),
			body,
			c.GetHeader(security.HeaderWebhookSignature))
		if err != nil {
			h.log.Warn().Err(err).Msg("webhook signature rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}
	}

	event, err := ParseWebhookPayload(body)
	if err != nil {
		h.log.Error().Err(err).Msg("webhook payload unreadable")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.reconciler.Reconcile(c.Request.Context(), event); err != nil {
		h.log.Error().Err(err).Str("prediction_id", event.PredictionID).Msg("webhook reconciliation failed")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
