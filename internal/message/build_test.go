package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailhook/internal/models"
)

func TestBuild_EmptyRecipients(t *testing.T) {
	_, err := Build(BuildParams{
		From:    "sender@example.com",
		Subject: "No recipients",
		Text:    "hello",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuild_HeaderOrder(t *testing.T) {
	raw, err := Build(BuildParams{
		From:       "sender@example.com",
		To:         []string{"to@example.com"},
		Cc:         []string{"cc@example.com"},
		ReplyTo:    "reply@example.com",
		Subject:    "Ordering",
		Text:       "body",
		InReplyTo:  "parent@example.com",
		References: []string{"root@example.com", "parent@example.com"},
	})
	require.NoError(t, err)

	ordered := []string{"From:", "To:", "Cc:", "Reply-To:", "Subject:", "Message-ID:",
		"In-Reply-To:", "References:", "Date:", "MIME-Version:", "Content-Type:"}

	msg := string(raw)
	last := -1
	for _, prefix := range ordered {
		idx := strings.Index(msg, "\r\n"+prefix)
		if prefix == "From:" {
			idx = strings.Index(msg, prefix)
		}
		require.GreaterOrEqual(t, idx, 0, "missing header %s", prefix)
		assert.Greater(t, idx, last, "header %s out of order", prefix)
		last = idx
	}
}

func TestBuild_MessageIDGeneration(t *testing.T) {
	tests := []struct {
		name          string
		customHeaders map[string]string
		wantGenerated bool
	}{
		{
			name:          "auto-generated when absent",
			customHeaders: nil,
			wantGenerated: true,
		},
		{
			name:          "custom header suppresses generation",
			customHeaders: map[string]string{"Message-ID": "<fixed@example.com>"},
			wantGenerated: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Build(BuildParams{
				From:          "sender@example.com",
				To:            []string{"to@example.com"},
				Subject:       "Test",
				Text:          "body",
				CustomHeaders: tt.customHeaders,
			})
			require.NoError(t, err)

			email, err := Parse(raw)
			require.NoError(t, err)

			if tt.wantGenerated {
				assert.Contains(t, email.MessageID, "@example.com")
				assert.NotEqual(t, "fixed@example.com", email.MessageID)
			} else {
				assert.Equal(t, "fixed@example.com", email.MessageID)
			}
		})
	}
}

func TestBuild_StructureSelection(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		html        string
		attachments []models.Attachment
		wantType    string
		wantNested  string
	}{
		{
			name:     "text only is flat",
			text:     "plain body",
			wantType: "text/plain",
		},
		{
			name:     "html only is flat",
			html:     "<p>hi</p>",
			wantType: "text/html",
		},
		{
			name:     "both bodies without attachments",
			text:     "plain",
			html:     "<p>rich</p>",
			wantType: "multipart/alternative",
		},
		{
			name: "attachment with single body",
			text: "see attached",
			attachments: []models.Attachment{
				{Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")},
			},
			wantType: "multipart/mixed",
		},
		{
			name: "attachment with both bodies nests alternative",
			text: "plain",
			html: "<p>rich</p>",
			attachments: []models.Attachment{
				{Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")},
			},
			wantType:   "multipart/mixed",
			wantNested: "multipart/alternative",
		},
		{
			name:     "no body at all gets placeholder text part",
			wantType: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Build(BuildParams{
				From:        "sender@example.com",
				To:          []string{"to@example.com"},
				Subject:     "Shape",
				Text:        tt.text,
				HTML:        tt.html,
				Attachments: tt.attachments,
			})
			require.NoError(t, err)

			msg := string(raw)
			assert.Contains(t, msg, "Content-Type: "+tt.wantType)
			if tt.wantNested != "" {
				assert.Contains(t, msg, tt.wantNested)
			}
			if tt.text == "" && tt.html == "" && tt.attachments == nil {
				assert.Contains(t, msg, placeholderBody)
			}
		})
	}
}

func TestBuild_AttachmentEncoding(t *testing.T) {
	// PNG-ish payload long enough to force base64 line wrapping
	content := make([]byte, 300)
	for i := range content {
		content[i] = byte(i % 251)
	}

	raw, err := Build(BuildParams{
		From:    "sender@example.com",
		To:      []string{"to@example.com"},
		Subject: "Attachment",
		Text:    "see attached",
		Attachments: []models.Attachment{
			{Filename: "image.png", ContentType: "image/png", Content: content},
		},
	})
	require.NoError(t, err)

	msg := string(raw)
	assert.Contains(t, msg, "Content-Type: multipart/mixed")
	assert.NotContains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, `Content-Disposition: attachment; filename="image.png"`)
	assert.Contains(t, msg, "Content-Transfer-Encoding: base64")

	// Every base64 line must be wrapped at 76 characters
	inBase64 := false
	for _, line := range strings.Split(msg, "\r\n") {
		if strings.HasPrefix(line, "Content-Transfer-Encoding: base64") {
			inBase64 = true
			continue
		}
		if inBase64 {
			if line == "" || strings.HasPrefix(line, "--") || strings.Contains(line, ":") {
				if strings.HasPrefix(line, "--") {
					inBase64 = false
				}
				continue
			}
			assert.LessOrEqual(t, len(line), 76)
		}
	}

	// The attachment must survive a parse round trip intact
	email, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "image.png", email.Attachments[0].Filename)
	assert.Equal(t, "image/png", email.Attachments[0].ContentType)
	assert.Equal(t, content, email.Attachments[0].Content)
	assert.Equal(t, int64(len(content)), email.Attachments[0].SizeBytes)
}

func TestBuild_BoundariesDoNotCollide(t *testing.T) {
	raw, err := Build(BuildParams{
		From:    "sender@example.com",
		To:      []string{"to@example.com"},
		Subject: "Boundaries",
		Text:    "plain",
		HTML:    "<p>rich</p>",
		Attachments: []models.Attachment{
			{Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")},
		},
	})
	require.NoError(t, err)

	msg := string(raw)
	mixedIdx := strings.Index(msg, "boundary=\"mixed-")
	altIdx := strings.Index(msg, "boundary=\"alt-")
	require.Greater(t, mixedIdx, 0)
	require.Greater(t, altIdx, 0)

	mixed := msg[mixedIdx+len("boundary=\"") : strings.Index(msg[mixedIdx+len("boundary=\""):], "\"")+mixedIdx+len("boundary=\"")]
	alt := msg[altIdx+len("boundary=\"") : strings.Index(msg[altIdx+len("boundary=\""):], "\"")+altIdx+len("boundary=\"")]
	assert.NotEqual(t, mixed, alt)
}

func TestBuildParseRoundTrip(t *testing.T) {
	text := "Hello,\nThis is the plain body."
	html := "<p>Hello, this is the rich body.</p>"

	tests := []struct {
		name string
		text string
		html string
	}{
		{name: "text only", text: text},
		{name: "html only", html: html},
		{name: "both bodies", text: text, html: html},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Build(BuildParams{
				From:    "Alice <alice@example.com>",
				To:      []string{"bob@example.com", "carol@example.com"},
				Cc:      []string{"dave@example.com"},
				Subject: "Round trip",
				Text:    tt.text,
				HTML:    tt.html,
			})
			require.NoError(t, err)

			email, err := Parse(raw)
			require.NoError(t, err)
			require.True(t, email.ParseSuccess)

			assert.Equal(t, "Round trip", email.Subject)
			require.Len(t, email.From.Addresses, 1)
			assert.Equal(t, "alice@example.com", email.From.Addresses[0].Address)
			assert.Equal(t, "Alice", email.From.Addresses[0].Name)
			require.Len(t, email.To.Addresses, 2)
			assert.Equal(t, "bob@example.com", email.To.Addresses[0].Address)
			assert.Equal(t, "carol@example.com", email.To.Addresses[1].Address)
			require.Len(t, email.Cc.Addresses, 1)

			if tt.text != "" {
				require.NotNil(t, email.TextBody)
				// Parser normalizes qp line endings back to the original text
				assert.Equal(t, tt.text, strings.ReplaceAll(*email.TextBody, "\r\n", "\n"))
			} else {
				assert.Nil(t, email.TextBody)
			}
			if tt.html != "" {
				require.NotNil(t, email.HTMLBody)
				assert.Equal(t, tt.html, strings.ReplaceAll(*email.HTMLBody, "\r\n", "\n"))
			} else {
				assert.Nil(t, email.HTMLBody)
			}
		})
	}
}
