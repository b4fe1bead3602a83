package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// StdoutProvider prints messages to a writer instead of sending them.
// Used for local development and tests.
type StdoutProvider struct {
	writer io.Writer
}

// NewStdout creates a provider that writes to os.Stdout
func NewStdout() *StdoutProvider {
	return &StdoutProvider{writer: os.Stdout}
}

// NewStdoutWithWriter creates a provider writing to the given writer,
// useful for testing
func NewStdoutWithWriter(w io.Writer) *StdoutProvider {
	return &StdoutProvider{writer: w}
}

// Send prints the message in a readable format and always succeeds
func (p *StdoutProvider) Send(_ context.Context, msg *OutboundMessage) (string, error) {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("From: %s\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.To, ", ")))
	if len(msg.Cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\n", strings.Join(msg.Cc, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))

	body := msg.TextBody
	if body == "" {
		body = msg.HTMLBody
	}
	b.WriteString("Body:\n")
	b.WriteString(body + "\n")

	if len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, fmt.Sprintf("%s (%d B)", att.Filename, len(att.Content)))
		}
		b.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(names, ", ")))
	}
	b.WriteString("========================================\n")

	fmt.Fprint(p.writer, b.String()) //nolint:errcheck // stdout writes are best effort

	return uuid.NewString(), nil
}

// Name returns the provider name
func (p *StdoutProvider) Name() string {
	return "stdout"
}
