package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// NoticeProps is the content of a single-message notification email.
type NoticeProps struct {
	Title      string
	Paragraphs []string
	Warning    string // highlighted line, optional
	ActionText string // button label, optional
	ActionURL  string
	Footer     string
}

// Notice lays out a short transactional message with inline styles.
// All text is escaped.
func Notice(p NoticeProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		sw := &stickyWriter{w: w}
		sw.write(`<!DOCTYPE html><html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"></head>`)
		sw.write(`<body style="margin:0;padding:0;background:#f4f4f5;font-family:Helvetica,Arial,sans-serif;">`)
		sw.write(`<table role="presentation" width="100%" cellpadding="0" cellspacing="0"><tr><td align="center" style="padding:24px;">`)
		sw.write(`<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">`)

		sw.write(`<tr><td><h1 style="margin:0 0 16px;font-size:22px;color:#111827;">`)
		sw.write(templ.EscapeString(p.Title))
		sw.write(`</h1></td></tr>`)

		for _, para := range p.Paragraphs {
			sw.write(`<tr><td><p style="margin:0 0 12px;font-size:15px;line-height:22px;color:#374151;">`)
			sw.write(templ.EscapeString(para))
			sw.write(`</p></td></tr>`)
		}

		if p.Warning != "" {
			sw.write(`<tr><td><p style="margin:0 0 12px;font-size:15px;line-height:22px;color:#b45309;font-weight:bold;">`)
			sw.write(templ.EscapeString(p.Warning))
			sw.write(`</p></td></tr>`)
		}

		if p.ActionText != "" && p.ActionURL != "" {
			sw.write(`<tr><td style="padding:12px 0;"><a href="`)
			sw.write(templ.EscapeString(string(templ.URL(p.ActionURL))))
			sw.write(`" style="display:inline-block;padding:12px 20px;background:#2563eb;color:#ffffff;border-radius:6px;text-decoration:none;font-size:15px;">`)
			sw.write(templ.EscapeString(p.ActionText))
			sw.write(`</a></td></tr>`)
		}

		if p.Footer != "" {
			sw.write(`<tr><td><p style="margin:16px 0 0;font-size:12px;color:#6b7280;">`)
			sw.write(templ.EscapeString(p.Footer))
			sw.write(`</p></td></tr>`)
		}

		sw.write(`</table></td></tr></table></body></html>`)
		return sw.err
	})
}

// stickyWriter keeps the first write error so the layout above reads linearly.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) write(str string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, str)
}
