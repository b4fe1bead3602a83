package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSESClient struct {
	input *sesv2.SendEmailInput
	err   error
}

func (m *mockSESClient) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
}

func TestSESProvider_SendsRawMessage(t *testing.T) {
	mock := &mockSESClient{}
	provider := NewSESWithClient(mock)

	raw := []byte("From: a@x\r\nTo: b@y\r\n\r\nbody")
	id, err := provider.Send(context.Background(), &OutboundMessage{
		EnvelopeFrom: "a@x",
		EnvelopeTo:   []string{"b@y"},
		Raw:          raw,
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-msg-1", id)

	require.NotNil(t, mock.input)
	assert.Equal(t, raw, mock.input.Content.Raw.Data)
	assert.Equal(t, "a@x", aws.ToString(mock.input.FromEmailAddress))
	assert.Equal(t, []string{"b@y"}, mock.input.Destination.ToAddresses)
}

func TestSESProvider_RequiresRaw(t *testing.T) {
	provider := NewSESWithClient(&mockSESClient{})
	_, err := provider.Send(context.Background(), &OutboundMessage{From: "a@x"})
	assert.Error(t, err)
}

func TestSESProvider_PropagatesAPIError(t *testing.T) {
	provider := NewSESWithClient(&mockSESClient{err: errors.New("throttled")})
	_, err := provider.Send(context.Background(), &OutboundMessage{Raw: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSendGridProvider_RequiresAPIKey(t *testing.T) {
	provider := NewSendGrid("")
	_, err := provider.Send(context.Background(), &OutboundMessage{From: "a@x", To: []string{"b@y"}})
	assert.Error(t, err)
}

func TestStdoutProvider_PrintsMessage(t *testing.T) {
	var buf bytes.Buffer
	provider := NewStdoutWithWriter(&buf)

	id, err := provider.Send(context.Background(), &OutboundMessage{
		From:     "Alice <alice@example.com>",
		To:       []string{"bob@example.com"},
		Subject:  "Hi",
		TextBody: "hello there",
		Attachments: []Attachment{
			{Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	out := buf.String()
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "Subject: Hi")
	assert.Contains(t, out, "hello there")
	assert.Contains(t, out, "a.txt (1 B)")
}
