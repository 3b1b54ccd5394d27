// Package email sends transactional messages.
//
// EmailSender is the transport contract: the caller supplies a fully rendered
// subject and HTML body and gets back a single error. PostmarkClient delivers
// through Postmark with Reply-To set to the support address; DevSender writes
// messages to disk for local work. NewSender picks one from Config.
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "owner@example.com",
//		Subject:  "Your trial ends soon",
//		BodyHTML: html,
//		Tag:      "trial_final",
//	})
//
// Send failures wrap ErrFailedToSendEmail; a bounced or inactive address also
// wraps ErrRecipientRejected. Bad input wraps ErrInvalidParams and bad setup
// ErrInvalidConfig.
//
// The templates subpackage holds the shared HTML layout (templates.Notice)
// and templates.Render for any templ.Component.
package email
