package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Postmark API error codes that reject the recipient rather than the request.
const (
	postmarkInvalidAddress    = 300
	postmarkInactiveRecipient = 406
)

type postmarkClient struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkClient returns a sender backed by the Postmark API. Both tokens
// and both addresses are required.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	required := []struct{ name, value string }{
		{"PostmarkServerToken", cfg.PostmarkServerToken},
		{"PostmarkAccountToken", cfg.PostmarkAccountToken},
		{"SenderEmail", cfg.SenderEmail},
		{"SupportEmail", cfg.SupportEmail},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidConfig, f.name)
		}
	}
	for _, f := range required[2:] {
		if !emailRegex.MatchString(f.value) {
			return nil, fmt.Errorf("%w: %s must be a valid email address", ErrInvalidConfig, f.name)
		}
	}

	return &postmarkClient{
		client:  postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    cfg.SenderEmail,
		replyTo: cfg.SupportEmail,
	}, nil
}

// SendEmail delivers one notice. Replies go to the support address; only
// opens are tracked so links in billing notices stay unmodified.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	from := c.from
	if params.From != "" {
		from = params.From
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       from,
		ReplyTo:    c.replyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}

	switch code := int(resp.ErrorCode); {
	case code == 0:
		return nil
	case code == postmarkInvalidAddress || code == postmarkInactiveRecipient:
		return errors.Join(ErrFailedToSendEmail, ErrRecipientRejected,
			fmt.Errorf("postmark %d: %s", code, resp.Message))
	default:
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark %d: %s", code, resp.Message))
	}
}
