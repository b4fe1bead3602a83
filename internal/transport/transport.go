// Package transport defines the outbound mail boundary and its providers.
package transport

import "context"

// OutboundMessage carries one message across the send boundary: the raw
// RFC 2822 bytes produced by the MIME builder plus the structured fields
// providers that cannot accept raw MIME need to render it themselves.
type OutboundMessage struct {
	EnvelopeFrom string
	EnvelopeTo   []string

	From        string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment

	// Raw is the prebuilt MIME message; providers that support raw
	// submission send it bit-exact
	Raw []byte
}

// Attachment is the transport-level view of one attachment
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Provider is the interface that email delivery backends implement. Each
// provider handles the actual submission of a message to its service.
type Provider interface {
	// Send delivers the message and returns the provider's message id
	Send(ctx context.Context, msg *OutboundMessage) (string, error)

	// Name returns the human-readable provider name
	Name() string
}
