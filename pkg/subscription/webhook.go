package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/plan"
)

// WebhookEvent is a verified payment-processor event reduced to the row change it implies.
type WebhookEvent struct {
	Provider   string
	EventID    string
	Type       string // provider's event name
	OccurredAt time.Time

	// TenantID comes from the metadata attached at checkout; uuid.Nil when absent.
	TenantID               uuid.UUID
	ExternalSubscriptionID string
	Patch                  Patch
}

// WebhookParser verifies a raw webhook body and converts it.
// Events that carry no subscription change return ErrUnsupportedWebhookEvent.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// PriceMap maps processor price ids to plan tiers.
type PriceMap map[string]plan.Type

// NewPriceMap builds a PriceMap from config values such as "pri_123:starter".
func NewPriceMap(raw map[string]string) PriceMap {
	m := make(PriceMap, len(raw))
	for price, t := range raw {
		m[price] = plan.Type(t)
	}
	return m
}

// resolve returns the tier for priceID. Unknown prices map to starter, the
// most restrictive paid tier; an empty price leaves the plan untouched.
func (m PriceMap) resolve(priceID string, log *slog.Logger) *plan.Type {
	if priceID == "" {
		return nil
	}
	if t, ok := m[priceID]; ok && t.Valid() {
		return &t
	}
	log.Warn("unknown price id, using starter plan", slog.String("price_id", priceID))
	return Ptr(plan.TypeStarter)
}

// WebhookHandler verifies processor webhooks and applies them through the Repository.
type WebhookHandler struct {
	parser          WebhookParser
	repo            *Repository
	signatureHeader string
	maxBody         int64
	logger          *slog.Logger
}

// NewWebhookHandler returns an http.Handler for one provider. signatureHeader
// is e.g. "Paddle-Signature" or "Stripe-Signature".
func NewWebhookHandler(parser WebhookParser, repo *Repository, signatureHeader string, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &WebhookHandler{
		parser:          parser,
		repo:            repo,
		signatureHeader: signatureHeader,
		maxBody:         1 << 20,
		logger:          log,
	}
}

// MetadataLastEventAt is the metadata key holding the occurred-at time of
// the newest processor event applied to a row.
const MetadataLastEventAt = "last_event_at"

// Apply writes the event's patch. The tenant comes from the event metadata,
// or from the row already holding the external subscription id. An event
// older than the newest one already applied to the row changes nothing and
// returns the current row with ErrStaleWebhookEvent.
func (h *WebhookHandler) Apply(ctx context.Context, ev *WebhookEvent) (*Subscription, error) {
	existing, err := h.current(ctx, ev)
	if err != nil {
		return nil, err
	}

	tenantID := ev.TenantID
	if tenantID == uuid.Nil {
		if existing == nil {
			return nil, ErrMissingTenantID
		}
		tenantID = existing.TenantID
	}

	if existing != nil && !ev.OccurredAt.IsZero() {
		if last, ok := lastEventAt(existing); ok && ev.OccurredAt.Before(last) {
			return existing, ErrStaleWebhookEvent
		}
	}

	patch := ev.Patch
	if !ev.OccurredAt.IsZero() {
		patch.Metadata = maps.Clone(patch.Metadata)
		if patch.Metadata == nil {
			patch.Metadata = make(map[string]any, 1)
		}
		patch.Metadata[MetadataLastEventAt] = ev.OccurredAt.UTC().Format(time.RFC3339Nano)
	}
	return h.repo.Upsert(ctx, tenantID, patch)
}

// current returns the row the event refers to, or nil when there is none yet.
func (h *WebhookHandler) current(ctx context.Context, ev *WebhookEvent) (*Subscription, error) {
	if ev.ExternalSubscriptionID != "" {
		row, err := h.repo.GetByExternalID(ctx, ev.ExternalSubscriptionID)
		if err == nil {
			return row, nil
		}
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return nil, err
		}
	}
	if ev.TenantID == uuid.Nil {
		return nil, nil
	}
	row, err := h.repo.Get(ctx, ev.TenantID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, nil
	}
	return row, err
}

func lastEventAt(s *Subscription) (time.Time, bool) {
	raw, ok := s.Metadata[MetadataLastEventAt].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ServeHTTP answers 2xx for applied, stale and ignored events and 503 when the store is down.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	ev, err := h.parser.ParseWebhook(ctx, body, r.Header.Get(h.signatureHeader))
	switch {
	case errors.Is(err, ErrUnsupportedWebhookEvent):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	case err != nil:
		h.logger.WarnContext(ctx, "webhook rejected", logger.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook"})
		return
	}

	sub, err := h.Apply(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleWebhookEvent):
		h.logger.InfoContext(ctx, "stale webhook ignored",
			slog.String("provider", ev.Provider),
			slog.String("event", ev.Type),
			slog.String("event_id", ev.EventID),
			logger.TenantID(sub.TenantID),
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "stale",
			"tenant_id": sub.TenantID,
			"state":     sub.Status,
		})
		return
	case errors.Is(err, ErrMissingTenantID):
		h.logger.WarnContext(ctx, "webhook without tenant for unknown subscription",
			slog.String("provider", ev.Provider),
			slog.String("event", ev.Type),
			logger.ExternalID(ev.ExternalSubscriptionID),
		)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "tenant not resolvable"})
		return
	case IsUnavailable(err):
		h.logger.ErrorContext(ctx, "webhook apply failed",
			slog.String("provider", ev.Provider),
			slog.String("event", ev.Type),
			logger.Error(err),
		)
		// Non-2xx makes the processor redeliver.
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "try again later"})
		return
	default:
		h.logger.ErrorContext(ctx, "webhook cannot be applied",
			slog.String("provider", ev.Provider),
			slog.String("event", ev.Type),
			logger.Error(err),
		)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "webhook cannot be applied"})
		return
	}

	h.logger.InfoContext(ctx, "webhook applied",
		slog.String("provider", ev.Provider),
		slog.String("event", ev.Type),
		logger.TenantID(sub.TenantID),
		logger.Status(sub.Status),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "applied",
		"tenant_id": sub.TenantID,
		"state":     sub.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseTenantID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
