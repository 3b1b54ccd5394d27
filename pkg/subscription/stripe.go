package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/planwarden/pkg/logger"
)

// StripeSignatureHeader carries the Stripe webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// StripeConfig holds configuration for Stripe webhooks.
type StripeConfig struct {
	WebhookSecret string            `env:"STRIPE_WEBHOOK_SECRET"`
	PricePlans    map[string]string `env:"STRIPE_PRICE_PLANS"`
	Tolerance     time.Duration     `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"`
}

// StripeProvider verifies Stripe webhooks and maps customer.subscription.* events.
type StripeProvider struct {
	secret    string
	tolerance time.Duration
	prices    PriceMap
	logger    *slog.Logger
}

// NewStripeProvider returns ErrMissingWebhookSecret when cfg has no secret.
func NewStripeProvider(cfg StripeConfig, log *slog.Logger) (*StripeProvider, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if log == nil {
		log = logger.Discard()
	}
	return &StripeProvider{
		secret:    cfg.WebhookSecret,
		tolerance: cfg.Tolerance,
		prices:    NewPriceMap(cfg.PricePlans),
		logger:    log,
	}, nil
}

// ParseWebhook checks the signature before decoding anything.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}

	eventType := string(event.Type)
	if !strings.HasPrefix(eventType, "customer.subscription.") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedWebhookEvent, eventType)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidWebhookPayload)
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("%w: missing subscription id", ErrInvalidWebhookPayload)
	}

	status := mapStripeStatus(sub.Status)
	if eventType == "customer.subscription.deleted" {
		status = StatusCanceled
	}

	patch := Patch{
		Status:                 &status,
		ExternalSubscriptionID: Ptr(sub.ID),
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		patch.ExternalCustomerID = Ptr(sub.Customer.ID)
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil && item.Price.ID != "" {
			patch.ExternalPriceID = Ptr(item.Price.ID)
			patch.PlanType = p.prices.resolve(item.Price.ID, p.logger)
		}
		if item.CurrentPeriodStart > 0 {
			patch.CurrentPeriodStart = Ptr(time.Unix(item.CurrentPeriodStart, 0).UTC())
		}
		if item.CurrentPeriodEnd > 0 {
			patch.CurrentPeriodEnd = Ptr(time.Unix(item.CurrentPeriodEnd, 0).UTC())
		}
	}
	if status == StatusTrial && sub.TrialEnd > 0 {
		patch.TrialEndsAt = Ptr(time.Unix(sub.TrialEnd, 0).UTC())
	}
	if sub.CanceledAt > 0 {
		patch.CanceledAt = Ptr(time.Unix(sub.CanceledAt, 0).UTC())
	}

	return &WebhookEvent{
		Provider:               "stripe",
		EventID:                event.ID,
		Type:                   eventType,
		OccurredAt:             time.Unix(event.Created, 0).UTC(),
		TenantID:               parseTenantID(sub.Metadata["tenant_id"]),
		ExternalSubscriptionID: sub.ID,
		Patch:                  patch,
	}, nil
}

func mapStripeStatus(s stripe.SubscriptionStatus) Status {
	switch s {
	case stripe.SubscriptionStatusTrialing:
		return StatusTrial
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return StatusPastDue
	case stripe.SubscriptionStatusIncomplete:
		return StatusPending
	case stripe.SubscriptionStatusCanceled:
		return StatusCanceled
	default: // incomplete_expired, paused
		return StatusExpired
	}
}
