// webhooks.go — Stripe webhook forwarder.
//
// POST /webhooks/stripe
//
// The gateway does not own billing state. It verifies the Stripe signature,
// records the event for observability, and forwards the verified payload to
// the platform backend, which owns the subscription lifecycle.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/metrics"
)

// maxWebhookBytes caps the webhook body (Stripe events are always small).
const maxWebhookBytes = 65536

// HandleStripeWebhook verifies and forwards one Stripe event.
func (h *Handlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		auth.WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}

	secret := h.cfg.StripeWebhookSecret
	if secret == "" {
		h.log.Warn("STRIPE_WEBHOOK_SECRET not set — skipping signature verification (dev only)")
	}

	var event stripe.Event
	if secret != "" {
		event, err = webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), secret)
		if err != nil {
			h.log.WithError(err).Warn("webhook signature verification failed")
			auth.WriteError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
			return
		}
	} else {
		if err := json.Unmarshal(body, &event); err != nil {
			auth.WriteError(w, http.StatusBadRequest, "invalid_json", "failed to parse webhook body")
			return
		}
	}

	metrics.WebhookEvents.WithLabelValues(string(event.Type)).Inc()
	h.log.WithFields(logrus.Fields{
		"event_type": event.Type,
		"event_id":   event.ID,
	}).Info("stripe webhook received")

	if h.cfg.StripeForwardURL != "" {
		// Forward failures are logged, not surfaced — Stripe retries on
		// non-2xx and the backend dedupes by event id.
		h.forwardWebhook(r, body)
	}
	w.WriteHeader(http.StatusOK)
}

// forwardWebhook relays the verified payload to the platform backend.
func (h *Handlers) forwardWebhook(r *http.Request, body []byte) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.cfg.StripeForwardURL, bytes.NewReader(body))
	if err != nil {
		h.log.WithError(err).Warn("could not build webhook forward request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", r.Header.Get("Stripe-Signature"))

	resp, err := h.upstream.Do(req)
	if err != nil {
		h.log.WithError(err).Warn("webhook forward failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		h.log.WithField("status", resp.StatusCode).Warn("webhook forward rejected")
	}
}
