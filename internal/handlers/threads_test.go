package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailhook/internal/models"
	"mailhook/internal/threading"
)

func TestThreadPreviewHandler(t *testing.T) {
	first := "From: alice@example.com\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Hello\r\n" +
		"Message-ID: <m1@example.com>\r\n" +
		"Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n" +
		"\r\n" +
		"Hi Bob\r\n"
	reply := "From: bob@example.com\r\n" +
		"To: alice@example.com\r\n" +
		"Subject: Re: Hello\r\n" +
		"Message-ID: <m2@example.com>\r\n" +
		"In-Reply-To: <m1@example.com>\r\n" +
		"References: <m1@example.com>\r\n" +
		"Date: Mon, 02 Jun 2025 11:00:00 +0000\r\n" +
		"\r\n" +
		"Hi Alice\r\n"

	body, err := json.Marshal(ThreadPreviewRequest{Messages: []string{first, reply}})
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/threads/preview", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	engine := threading.NewEngine([]string{"bob@example.com"})
	require.NoError(t, ThreadPreviewHandler(engine)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response models.ThreadPreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	thread := response.Threads[0]
	assert.Equal(t, models.ConfidenceHigh, thread.Confidence)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, models.MessageInbound, thread.Messages[0].Type)
	assert.Equal(t, models.MessageOutbound, thread.Messages[1].Type)
}

func TestThreadPreviewHandler_EmptyBatch(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/threads/preview", strings.NewReader(`{"messages":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, ThreadPreviewHandler(threading.NewEngine(nil))(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThreadPreviewHandler_BadMessage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/threads/preview", strings.NewReader(`{"messages":["garbage"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, ThreadPreviewHandler(threading.NewEngine(nil))(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
