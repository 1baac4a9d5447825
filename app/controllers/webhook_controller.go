package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/docsmithhq/docsmith/internal/pkg/billing"
	"github.com/docsmithhq/docsmith/internal/pkg/metrics/counter"
)

const webhookTimeout = 15 * time.Second

// EventApplier is the reconciler surface the webhook handler needs.
type EventApplier interface {
	Apply(ctx context.Context, ev *billing.Event) (billing.Outcome, error)
}

// WebhookController handles inbound billing provider notifications.
type WebhookController struct {
	applier EventApplier
	secret  string
}

// NewWebhookController creates the controller with the shared webhook secret.
func NewWebhookController(applier EventApplier, secret string) *WebhookController {
	return &WebhookController{applier: applier, secret: secret}
}

// HandleBillingWebhook ingests one provider event. The response status only
// tells the provider whether to redeliver: 200 for applied/duplicate/stale,
// non-2xx for signature failure or a transient processing failure.
func (wc *WebhookController) HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("X-Billing-Signature")

	if !billing.VerifyWebhookSignature(rawBody, signature, wc.secret) {
		// Terminal for the request: no ledger entry, no detail about which
		// check failed.
		log.Warnf("[Webhook] signature verification failed from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_request"})
	}

	ev, err := billing.ParseEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	outcome, err := wc.applier.Apply(ctx, ev)
	_ = counter.AddWebhookOutcome(string(outcome))
	if outcome.ShouldRedeliver() {
		log.Errorf("[Webhook] event %s failed, relying on provider redelivery: %v", ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": outcome})
}
