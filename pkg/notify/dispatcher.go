package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planwarden/pkg/audit"
	"github.com/dmitrymomot/planwarden/pkg/email"
	"github.com/dmitrymomot/planwarden/pkg/logger"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

// SweepResult summarizes one batch run.
type SweepResult struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
	// Interrupted is set when the context ended before every row was checked.
	Interrupted bool `json:"interrupted"`
}

// add counts one row. A row can be both sent and failed when the send
// succeeded but the follow-up write did not.
func (r *SweepResult) add(sent bool, err error) {
	if sent {
		r.Sent++
	}
	if err != nil {
		r.Errors++
	}
	if !sent && err == nil {
		r.Skipped++
	}
}

// dispatcher is the claim-render-send step both schedulers share.
type dispatcher struct {
	options
	tenants tenant.Store
	sender  email.EmailSender
}

func newDispatcher(tenants tenant.Store, sender email.EmailSender, opts []Option) dispatcher {
	o := options{
		ledger:   NewMemoryLedger(),
		renderer: NewRenderer(RendererConfig{ProductName: "Planwarden"}),
		audit:    audit.Discard(),
		logger:   logger.Discard(),
		now:      time.Now,
		trial:    DefaultTrialPolicy(),
		renewal:  DefaultRenewalPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return dispatcher{options: o, tenants: tenants, sender: sender}
}

// deliver sends kind to the tenant unless the ledger shows a send at or after
// cutoff. A failed send gives the claim back so the next run retries.
func (d *dispatcher) deliver(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, data Data) (bool, error) {
	kind := data.Kind
	log := d.logger.With(logger.TenantID(tenantID), logger.Kind(kind))

	profile, err := d.recipient(ctx, tenantID)
	if err != nil {
		d.metrics.failed(kind)
		log.WarnContext(ctx, "notification has no recipient", logger.Error(err))
		return false, err
	}
	data.Recipient = profile

	claim, err := d.ledger.Claim(ctx, tenantID, kind, d.now(), cutoff)
	if err != nil {
		d.metrics.failed(kind)
		log.ErrorContext(ctx, "notification ledger claim failed", logger.Error(err))
		return false, err
	}
	if !claim.Granted {
		d.metrics.suppressed(kind)
		log.DebugContext(ctx, "notification suppressed", slog.Time("last_sent_at", claim.Previous))
		return false, nil
	}

	if err := d.send(ctx, profile, data); err != nil {
		if rerr := d.ledger.Release(ctx, claim); rerr != nil {
			log.ErrorContext(ctx, "notification claim release failed", logger.Error(rerr))
		}
		d.metrics.failed(kind)
		rejected := errors.Is(err, email.ErrRecipientRejected)
		if rejected {
			// The claim is released anyway; an owner may fix the address.
			log.WarnContext(ctx, "notification recipient rejected", slog.String("to", profile.Email), logger.Error(err))
		} else {
			log.ErrorContext(ctx, "notification send failed", logger.Error(err))
		}
		if aerr := d.audit.LogError(ctx, audit.ActionNotifySendFailed, err,
			audit.WithTenant(tenantID.String()),
			audit.WithMetadata("kind", string(kind)),
			audit.WithMetadata("recipient_rejected", rejected),
		); aerr != nil {
			log.ErrorContext(ctx, "audit write failed", logger.Error(aerr))
		}
		return false, err
	}

	d.metrics.sent(kind)
	log.InfoContext(ctx, "notification sent", slog.String("to", profile.Email))
	if aerr := d.audit.Log(ctx, audit.ActionNotifySent,
		audit.WithTenant(tenantID.String()),
		audit.WithMetadata("kind", string(kind)),
		audit.WithMetadata("deadline", data.Deadline),
	); aerr != nil {
		log.ErrorContext(ctx, "audit write failed", logger.Error(aerr))
	}
	return true, nil
}

func (d *dispatcher) recipient(ctx context.Context, tenantID uuid.UUID) (*tenant.Profile, error) {
	profile, err := d.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, errors.Join(ErrNoRecipient, err)
	}
	if strings.TrimSpace(profile.Email) == "" {
		return nil, ErrNoRecipient
	}
	return profile, nil
}

func (d *dispatcher) send(ctx context.Context, to *tenant.Profile, data Data) error {
	msg, err := d.renderer.Render(ctx, data)
	if err != nil {
		return errors.Join(ErrNotificationSendFailed, fmt.Errorf("render %s: %w", data.Kind, err))
	}
	err = d.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to.Email,
		From:     d.from,
		Subject:  msg.Subject,
		BodyHTML: msg.HTML,
		Tag:      string(data.Kind),
	})
	if err != nil {
		return errors.Join(ErrNotificationSendFailed, err)
	}
	return nil
}
