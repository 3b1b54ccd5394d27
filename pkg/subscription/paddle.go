package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/logger"
)

// PaddleSignatureHeader carries the Paddle webhook signature.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for Paddle webhooks.
type PaddleConfig struct {
	WebhookSecret string            `env:"PADDLE_WEBHOOK_SECRET"`
	PricePlans    map[string]string `env:"PADDLE_PRICE_PLANS"` // e.g. "pri_01:starter,pri_02:professional"
}

// PaddleProvider verifies Paddle Billing webhooks and maps subscription events.
type PaddleProvider struct {
	verifier *paddle.WebhookVerifier
	prices   PriceMap
	logger   *slog.Logger
}

// NewPaddleProvider returns ErrMissingWebhookSecret when cfg has no secret.
func NewPaddleProvider(cfg PaddleConfig, log *slog.Logger) (*PaddleProvider, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PaddleProvider{
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		prices:   NewPriceMap(cfg.PricePlans),
		logger:   log,
	}, nil
}

type paddleEnvelope struct {
	EventID    string             `json:"event_id"`
	EventType  string             `json:"event_type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Data       paddleSubscription `json:"data"`
}

type paddleSubscription struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	CustomerID string            `json:"customer_id"`
	CustomData map[string]any    `json:"custom_data"`
	CanceledAt *time.Time        `json:"canceled_at"`
	Items      []paddleItem      `json:"items"`
	Period     *paddleTimePeriod `json:"current_billing_period"`
}

type paddleItem struct {
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
}

type paddleTimePeriod struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// ParseWebhook verifies the signature and converts subscription.* events.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	// The SDK verifies an *http.Request, so wrap the payload in one.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set(PaddleSignatureHeader, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if !strings.HasPrefix(env.EventType, "subscription.") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedWebhookEvent, env.EventType)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing subscription id", ErrInvalidWebhookPayload)
	}

	data := env.Data
	status := mapPaddleStatus(data.Status)

	patch := Patch{
		Status:                 &status,
		ExternalSubscriptionID: Ptr(data.ID),
	}
	if data.CustomerID != "" {
		patch.ExternalCustomerID = Ptr(data.CustomerID)
	}
	if len(data.Items) > 0 && data.Items[0].Price.ID != "" {
		patch.ExternalPriceID = Ptr(data.Items[0].Price.ID)
		patch.PlanType = p.prices.resolve(data.Items[0].Price.ID, p.logger)
	}
	if data.Period != nil {
		patch.CurrentPeriodStart = Ptr(data.Period.StartsAt)
		patch.CurrentPeriodEnd = Ptr(data.Period.EndsAt)
		if status == StatusTrial {
			patch.TrialEndsAt = Ptr(data.Period.EndsAt)
		}
	}
	if data.CanceledAt != nil {
		patch.CanceledAt = data.CanceledAt
	}

	return &WebhookEvent{
		Provider:               "paddle",
		EventID:                env.EventID,
		Type:                   env.EventType,
		OccurredAt:             env.OccurredAt,
		TenantID:               paddleTenantID(data.CustomData),
		ExternalSubscriptionID: data.ID,
		Patch:                  patch,
	}, nil
}

// paddleTenantID reads tenant_id from custom_data, falling back to customer_id
// which older checkouts used for the same purpose.
func paddleTenantID(custom map[string]any) uuid.UUID {
	for _, key := range []string{"tenant_id", "customer_id"} {
		if v, ok := custom[key].(string); ok {
			if id := parseTenantID(v); id != uuid.Nil {
				return id
			}
		}
	}
	return uuid.Nil
}

// mapPaddleStatus maps Paddle subscription status to the stored Status.
func mapPaddleStatus(s string) Status {
	switch strings.ToLower(s) {
	case "trialing":
		return StatusTrial
	case "active":
		return StatusActive
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	default: // paused and anything new
		return StatusExpired
	}
}
