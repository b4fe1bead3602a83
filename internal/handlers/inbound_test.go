package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailhook/internal/dispatch"
	"mailhook/internal/models"
	"mailhook/internal/transport"
)

// fakeEndpointSource serves a fixed endpoint list without a database
type fakeEndpointSource struct {
	endpoints []*models.Endpoint
	err       error
}

func (f *fakeEndpointSource) ListActive(_ context.Context) ([]*models.Endpoint, error) {
	return f.endpoints, f.err
}

func (f *fakeEndpointSource) GetByID(_ context.Context, id string) (*models.Endpoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.endpoints {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

const rawTestEmail = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Message-ID: <m1@example.com>\r\n" +
	"Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hi Bob\r\n"

func newTestDispatcher() *dispatch.Dispatcher {
	client := dispatch.NewClient(zerolog.Nop())
	forwarder := dispatch.NewForwarder(transport.NewStdout(), "relay@mailhook.dev", zerolog.Nop())
	return dispatch.NewDispatcher(client, forwarder, 4, 0, 0, zerolog.Nop())
}

func TestInboundHandler_RelaysToWebhook(t *testing.T) {
	received := make(chan []byte, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	source := &fakeEndpointSource{endpoints: []*models.Endpoint{{
		ID:     "ep-1",
		Type:   models.EndpointWebhook,
		URL:    hook.URL,
		Format: models.FormatInbound,
	}}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/inbound", strings.NewReader(rawTestEmail))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, InboundHandler(source, newTestDispatcher())(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response models.InboundResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "m1@example.com", response.MessageID)
	assert.True(t, response.ParseSuccess)
	require.Len(t, response.Deliveries, 1)
	assert.True(t, response.Deliveries[0].Success)

	payload := <-received
	assert.Contains(t, string(payload), "alice@example.com")
}

func TestInboundHandler_EmptyBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/inbound", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, InboundHandler(&fakeEndpointSource{}, newTestDispatcher())(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboundHandler_UnparseableMessage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/inbound", strings.NewReader("not an email at all"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, InboundHandler(&fakeEndpointSource{}, newTestDispatcher())(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "message could not be parsed", response.Error)
}

func TestInboundHandler_NoEndpoints(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/inbound", strings.NewReader(rawTestEmail))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, InboundHandler(&fakeEndpointSource{}, newTestDispatcher())(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response models.InboundResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Empty(t, response.Deliveries)
}
