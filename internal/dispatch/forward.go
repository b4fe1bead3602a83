package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mailhook/internal/message"
	"mailhook/internal/models"
	"mailhook/internal/transport"
)

// Forwarder redelivers inbound messages to email endpoints: it rebuilds the
// message with the endpoint's forwarding options and submits it through the
// outbound transport provider.
type Forwarder struct {
	provider    transport.Provider
	fromAddress string
	logger      zerolog.Logger
}

// NewForwarder creates a forwarder sending from the given relay address
func NewForwarder(provider transport.Provider, fromAddress string, logger zerolog.Logger) *Forwarder {
	return &Forwarder{provider: provider, fromAddress: fromAddress, logger: logger}
}

// Forward renders and sends a forwarded copy of the email to a forward or
// group endpoint. Group endpoints receive one message addressed to all
// recipients.
func (f *Forwarder) Forward(ctx context.Context, email *models.CanonicalEmail, endpoint *models.Endpoint) models.DeliveryResult {
	result := models.DeliveryResult{EndpointID: endpoint.ID}
	start := time.Now()

	recipients := endpoint.Recipients
	if endpoint.Type == models.EndpointEmailForward {
		recipients = []string{endpoint.ForwardTo}
	}
	if len(recipients) == 0 || recipients[0] == "" {
		result.Error = "endpoint has no forwarding recipients"
		return result
	}

	from := f.fromAddress
	if endpoint.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", endpoint.SenderName, f.fromAddress)
	}
	subject := email.Subject
	if endpoint.SubjectPrefix != "" {
		subject = strings.TrimSpace(endpoint.SubjectPrefix) + " " + subject
	}

	params := message.BuildParams{
		From:    from,
		To:      recipients,
		Subject: subject,
		Text:    email.Text(),
		HTML:    email.HTML(),
	}
	if endpoint.IncludeAttachments {
		params.Attachments = email.Attachments
	}

	raw, err := message.Build(params)
	if err != nil {
		result.Error = fmt.Sprintf("failed to build forwarded message: %v", err)
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result
	}

	outbound := &transport.OutboundMessage{
		EnvelopeFrom: f.fromAddress,
		EnvelopeTo:   recipients,
		From:         from,
		To:           recipients,
		Subject:      subject,
		TextBody:     email.Text(),
		HTMLBody:     email.HTML(),
		Raw:          raw,
	}
	if endpoint.IncludeAttachments {
		for _, att := range email.Attachments {
			outbound.Attachments = append(outbound.Attachments, transport.Attachment{
				Filename:    att.Filename,
				ContentType: att.ContentType,
				Content:     att.Content,
			})
		}
	}

	providerID, err := f.provider.Send(ctx, outbound)
	result.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		f.logger.Warn().
			Str("endpoint_id", endpoint.ID).
			Str("provider", f.provider.Name()).
			Err(err).
			Msg("Forward failed")
		return result
	}

	result.Success = true
	f.logger.Info().
		Str("endpoint_id", endpoint.ID).
		Str("provider", f.provider.Name()).
		Str("provider_message_id", providerID).
		Msg("Forwarded email")
	return result
}
