package account

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrBadSignature = errors.New("account: webhook signature mismatch")

// WebhookHandler applies payment-provider plan changes. The provider signs
// the raw request body with HMAC-SHA256 over a shared secret and sends the
// hex digest in a header; an unverifiable payload is discarded.
type WebhookHandler struct {
	secret  []byte
	service *Service
}

// NewWebhookHandler creates a handler with the shared signing secret.
func NewWebhookHandler(secret string, service *Service) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), service: service}
}

type webhookEvent struct {
	Event string `json:"event"`
	Email string `json:"email"`
	Plan  Plan   `json:"plan"`
}

// Verify checks the hex HMAC-SHA256 signature over body.
func (h *WebhookHandler) Verify(body []byte, signature string) error {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// Apply verifies the signature and applies the plan change in the payload.
// Only "payment.completed" events change state; anything else verifies and
// is ignored so the provider does not retry it forever.
func (h *WebhookHandler) Apply(ctx context.Context, body []byte, signature string) error {
	if err := h.Verify(body, signature); err != nil {
		return err
	}
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}
	if ev.Event != "payment.completed" {
		return nil
	}
	if err := h.service.Subscribe(ctx, ev.Email, ev.Plan); err != nil {
		return fmt.Errorf("apply plan %q to %s: %w", ev.Plan, ev.Email, err)
	}
	return nil
}
