package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridProvider sends via the SendGrid v3 API. SendGrid has no raw MIME
// submission, so the structured fields are rendered through its helpers.
type SendGridProvider struct {
	apiKey string
}

// NewSendGrid creates a SendGrid provider
func NewSendGrid(apiKey string) *SendGridProvider {
	return &SendGridProvider{apiKey: apiKey}
}

// Send renders and submits the message through the SendGrid v3 mail API
func (p *SendGridProvider) Send(_ context.Context, msg *OutboundMessage) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("SendGrid API key not configured")
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(toSendGridEmail(msg.From))
	m.Subject = msg.Subject

	personalization := sgmail.NewPersonalization()
	for _, to := range msg.To {
		personalization.AddTos(toSendGridEmail(to))
	}
	for _, cc := range msg.Cc {
		personalization.AddCCs(toSendGridEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		personalization.AddBCCs(toSendGridEmail(bcc))
	}
	m.AddPersonalizations(personalization)

	if msg.TextBody != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextBody))
	}
	if msg.HTMLBody != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLBody))
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		m.AddContent(sgmail.NewContent("text/plain", "(no content)"))
	}

	for _, att := range msg.Attachments {
		attachment := sgmail.NewAttachment()
		attachment.SetFilename(att.Filename)
		attachment.SetType(att.ContentType)
		attachment.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		attachment.SetDisposition("attachment")
		m.AddAttachment(attachment)
	}

	client := sendgrid.NewSendClient(p.apiKey)
	response, err := client.Send(m)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

// Name returns the provider name
func (p *SendGridProvider) Name() string {
	return "sendgrid"
}

// toSendGridEmail splits "Name <addr>" display forms into SendGrid's shape
func toSendGridEmail(addr string) *sgmail.Email {
	if parsed, err := mail.ParseAddress(addr); err == nil {
		return sgmail.NewEmail(parsed.Name, parsed.Address)
	}
	return sgmail.NewEmail("", addr)
}
