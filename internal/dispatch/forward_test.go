package dispatch

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailhook/internal/models"
	"mailhook/internal/transport"
)

func TestForward_SingleRecipient(t *testing.T) {
	var out bytes.Buffer
	forwarder := NewForwarder(transport.NewStdoutWithWriter(&out), "relay@mailhook.dev", zerolog.Nop())

	endpoint := &models.Endpoint{
		ID:            "fwd-1",
		Type:          models.EndpointEmailForward,
		ForwardTo:     "alice@example.com",
		SubjectPrefix: "[fwd]",
	}

	result := forwarder.Forward(context.Background(), sampleCanonicalEmail(), endpoint)

	require.True(t, result.Success, result.Error)
	assert.Contains(t, out.String(), "alice@example.com")
	assert.Contains(t, out.String(), "[fwd] Hi")
}

func TestForward_GroupRecipients(t *testing.T) {
	var out bytes.Buffer
	forwarder := NewForwarder(transport.NewStdoutWithWriter(&out), "relay@mailhook.dev", zerolog.Nop())

	endpoint := &models.Endpoint{
		ID:         "grp-1",
		Type:       models.EndpointEmailGroup,
		Recipients: []string{"a@example.com", "b@example.com"},
		SenderName: "Team Relay",
	}

	result := forwarder.Forward(context.Background(), sampleCanonicalEmail(), endpoint)

	require.True(t, result.Success, result.Error)
	assert.Contains(t, out.String(), "a@example.com")
	assert.Contains(t, out.String(), "b@example.com")
	assert.Contains(t, out.String(), "Team Relay")
}

func TestForward_NoRecipients(t *testing.T) {
	forwarder := NewForwarder(transport.NewStdout(), "relay@mailhook.dev", zerolog.Nop())

	endpoint := &models.Endpoint{ID: "fwd-2", Type: models.EndpointEmailForward}
	result := forwarder.Forward(context.Background(), sampleCanonicalEmail(), endpoint)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
