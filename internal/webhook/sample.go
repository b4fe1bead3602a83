package webhook

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"mailhook/internal/models"
)

// SampleEmail fabricates a canonical email shaped exactly like a production
// message (same field set, same header taxonomy) so format adapters and
// destination integrations can be validated without live traffic.
func SampleEmail() *models.CanonicalEmail {
	messageID := fmt.Sprintf("%s@sample.mailhook", uuid.NewString())
	text := "This is a test delivery from your inbound email relay.\n\n" +
		"If you can read this, the endpoint is wired up correctly."
	html := "<p>This is a <strong>test delivery</strong> from your inbound email relay.</p>" +
		"<p>If you can read this, the endpoint is wired up correctly.</p>"

	return &models.CanonicalEmail{
		MessageID: messageID,
		From: models.AddressGroup{
			DisplayText: "Test Sender <test@sample.mailhook>",
			Addresses:   []models.Address{{Name: "Test Sender", Address: "test@sample.mailhook"}},
		},
		To: models.AddressGroup{
			DisplayText: "you@example.com",
			Addresses:   []models.Address{{Address: "you@example.com"}},
		},
		Subject:  "Test delivery",
		Date:     time.Now().UTC(),
		TextBody: &text,
		HTMLBody: &html,
		Attachments: []models.Attachment{
			{
				Filename:    "sample.txt",
				ContentType: "text/plain",
				SizeBytes:   11,
				Disposition: "attachment",
				Content:     []byte("sample data"),
			},
		},
		Headers: map[string]models.HeaderValue{
			"message-id":   models.PlainHeader("<" + messageID + ">"),
			"subject":      models.PlainHeader("Test delivery"),
			"from":         models.PlainHeader("Test Sender <test@sample.mailhook>"),
			"to":           models.PlainHeader("you@example.com"),
			"content-type": models.StructuredHeader("multipart/mixed", map[string]string{"boundary": "sample-boundary"}),
			"received": models.ListHeader([]string{
				"from mx.sample.mailhook by inbound.mailhook",
				"from hop.sample.mailhook by mx.sample.mailhook",
			}),
		},
		ParseSuccess: true,
	}
}
