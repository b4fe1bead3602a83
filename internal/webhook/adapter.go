// Package webhook maps canonical emails into destination-specific payloads.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"mailhook/internal/message"
	"mailhook/internal/models"
)

// EventEmailReceived is emitted for every relayed inbound message
const EventEmailReceived = "email.received"

// previewLength caps sender/body previews in compact formats
const previewLength = 200

// nativePayload is the full structured dialect; its keys are part of the
// wire contract and must not change
type nativePayload struct {
	Event     string                `json:"event"`
	Timestamp time.Time             `json:"timestamp"`
	Email     models.CanonicalEmail `json:"email"`
	Endpoint  endpointIdentity      `json:"endpoint"`
}

type endpointIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// discordPayload follows Discord's incoming webhook schema
type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// slackPayload follows Slack's incoming webhook schema
type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Adapt maps a canonical email and a delivery event into the payload dialect
// selected by the endpoint's format, and builds the delivery headers. Custom
// endpoint headers are merged over generated ones, except Content-Type which
// is always owned by the adapter. Compact formats drop unsupported canonical
// fields silently.
func Adapt(event string, email *models.CanonicalEmail, endpoint *models.Endpoint) ([]byte, map[string]string, error) {
	now := time.Now().UTC()

	var payload []byte
	var err error
	switch endpoint.Format {
	case models.FormatDiscord:
		payload, err = json.Marshal(discordFromEmail(email, now))
	case models.FormatSlack:
		payload, err = json.Marshal(slackFromEmail(email))
	case models.FormatInbound, "":
		payload, err = json.Marshal(nativePayload{
			Event:     event,
			Timestamp: now,
			Email:     *email,
			Endpoint:  endpointIdentity{ID: endpoint.ID, Name: endpoint.Name},
		})
	default:
		return nil, nil, fmt.Errorf("unsupported webhook format %q", endpoint.Format)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s payload: %w", endpoint.Format, err)
	}

	headers := map[string]string{
		"X-Mailhook-Event":      event,
		"X-Mailhook-Delivery":   uuid.NewString(),
		"X-Mailhook-Timestamp":  now.Format(time.RFC3339),
		"X-Mailhook-Message-Id": email.MessageID,
	}
	if endpoint.SigningSecret != "" {
		headers["X-Mailhook-Signature"] = Sign(endpoint.SigningSecret, payload)
	}
	for k, v := range endpoint.CustomHeaders {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"

	return payload, headers, nil
}

// Sign computes the hex HMAC-SHA256 delivery signature for a payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func discordFromEmail(email *models.CanonicalEmail, now time.Time) discordPayload {
	embed := discordEmbed{
		Title:       subjectOrPlaceholder(email.Subject),
		Description: preview(email),
		Timestamp:   timestampOf(email, now).Format(time.RFC3339),
		Footer:      &discordFooter{Text: email.MessageID},
	}
	if from := email.From.DisplayText; from != "" {
		embed.Fields = append(embed.Fields, discordField{Name: "From", Value: truncate(from, previewLength), Inline: true})
	}
	if to := email.To.DisplayText; to != "" {
		embed.Fields = append(embed.Fields, discordField{Name: "To", Value: truncate(to, previewLength), Inline: true})
	}
	if n := len(email.Attachments); n > 0 {
		embed.Fields = append(embed.Fields, discordField{Name: "Attachments", Value: fmt.Sprintf("%d", n), Inline: true})
	}
	return discordPayload{Embeds: []discordEmbed{embed}}
}

func slackFromEmail(email *models.CanonicalEmail) slackPayload {
	summary := fmt.Sprintf("New email: %s", subjectOrPlaceholder(email.Subject))
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: truncate(subjectOrPlaceholder(email.Subject), 150)},
		},
		{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*From:* %s\n%s", truncate(email.From.DisplayText, previewLength), preview(email)),
			},
		},
	}
	return slackPayload{Text: summary, Blocks: blocks}
}

// preview extracts a short plain-text excerpt of the body
func preview(email *models.CanonicalEmail) string {
	text := email.Text()
	if text == "" && email.HTMLBody != nil {
		text = message.StripHTML(*email.HTMLBody)
	}
	return truncate(strings.TrimSpace(text), previewLength)
}

func subjectOrPlaceholder(subject string) string {
	if subject == "" {
		return "(no subject)"
	}
	return subject
}

func timestampOf(email *models.CanonicalEmail, fallback time.Time) time.Time {
	if email.Date.IsZero() {
		return fallback
	}
	return email.Date
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
