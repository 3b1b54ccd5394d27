package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/planwarden/pkg/email/templates"
	"github.com/dmitrymomot/planwarden/pkg/plan"
	"github.com/dmitrymomot/planwarden/pkg/tenant"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
}

// Data is what a Renderer gets to work with.
type Data struct {
	Kind      Kind
	Recipient *tenant.Profile
	PlanType  plan.Type
	// Deadline is the trial end or the period end.
	Deadline  time.Time
	Remaining time.Duration
}

// Renderer turns Data into a Message.
type Renderer interface {
	Render(ctx context.Context, data Data) (Message, error)
}

// RendererConfig holds the product-level strings used by the default renderer.
type RendererConfig struct {
	ProductName string `env:"NOTIFY_PRODUCT_NAME" envDefault:"Planwarden"`
	BillingURL  string `env:"NOTIFY_BILLING_URL"`
}

type defaultRenderer struct {
	cfg   RendererConfig
	title cases.Caser
}

// NewRenderer returns the built-in renderer.
func NewRenderer(cfg RendererConfig) Renderer {
	return &defaultRenderer{cfg: cfg, title: cases.Title(language.English)}
}

func (r *defaultRenderer) Render(ctx context.Context, d Data) (Message, error) {
	planName := r.title.String(strings.ReplaceAll(string(d.PlanType), "_", " "))
	greeting := "Hello,"
	if d.Recipient != nil {
		greeting = fmt.Sprintf("Hello %s,", d.Recipient.DisplayName())
	}

	var (
		subject string
		props   templates.NoticeProps
	)
	switch d.Kind {
	case KindTrialEarly:
		subject = fmt.Sprintf("Your %s trial ends in %s", r.cfg.ProductName, humanize(d.Remaining))
		props = templates.NoticeProps{
			Title: subject,
			Paragraphs: []string{
				greeting,
				fmt.Sprintf("Your free trial ends on %s.", d.Deadline.Format("Jan 2, 2006 at 15:04 MST")),
				"Choose a plan now to keep every customer, worker and product you have set up.",
			},
			ActionText: "Choose a plan",
		}
	case KindTrialFinal:
		subject = fmt.Sprintf("Last call: your %s trial ends in %s", r.cfg.ProductName, humanize(d.Remaining))
		props = templates.NoticeProps{
			Title:      subject,
			Paragraphs: []string{greeting, "Your free trial is about to end."},
			Warning:    "Pick a plan to avoid interruptions.",
			ActionText: "Upgrade now",
		}
	case KindRenewal:
		subject = fmt.Sprintf("Your %s plan renews today", planName)
		props = templates.NoticeProps{
			Title: subject,
			Paragraphs: []string{
				greeting,
				fmt.Sprintf("Your %s subscription period ends today, %s.", planName, d.Deadline.Format("Jan 2, 2006")),
				"We will confirm the renewal shortly. Your access continues in the meantime.",
			},
			ActionText: "Review billing",
		}
	default:
		return Message{}, fmt.Errorf("notify: no template for kind %q", d.Kind)
	}

	props.ActionURL = r.cfg.BillingURL
	props.Footer = fmt.Sprintf("You receive this because you administer a %s account.", r.cfg.ProductName)

	html, err := templates.Render(ctx, templates.Notice(props))
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}

// humanize renders a positive duration in the largest sensible unit.
func humanize(d time.Duration) string {
	switch {
	case d < time.Hour:
		return plural(int((d + 30*time.Second) / time.Minute), "minute")
	case d < 48*time.Hour:
		return plural(int((d + 30*time.Minute) / time.Hour), "hour")
	default:
		return plural(int((d + 12*time.Hour) / (24 * time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
