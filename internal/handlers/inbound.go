package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailhook/internal/dispatch"
	"mailhook/internal/message"
	"mailhook/internal/models"
	"mailhook/internal/webhook"
)

// EndpointSource resolves delivery endpoints. Implementations may cache;
// lookups return (nil, nil) when no endpoint matches.
type EndpointSource interface {
	ListActive(ctx context.Context) ([]*models.Endpoint, error)
	GetByID(ctx context.Context, id string) (*models.Endpoint, error)
}

// InboundHandler accepts a raw RFC 2822 message and relays it to every
// active endpoint
// @Summary Relay an inbound email
// @Description Parses a raw MIME message and delivers it to all active endpoints
// @Tags Inbound
// @Accept plain
// @Produce json
// @Success 200 {object} models.InboundResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/inbound [post]
func InboundHandler(endpoints EndpointSource, dispatcher *dispatch.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "failed to read request body", Message: err.Error(),
			})
		}
		if len(raw) == 0 {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "request body must contain a raw email message",
			})
		}

		email, err := message.Parse(raw)
		if err != nil {
			if errors.Is(err, message.ErrParse) {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error: "message could not be parsed", Message: err.Error(),
				})
			}
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "failed to process message", Message: err.Error(),
			})
		}

		active, err := endpoints.ListActive(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "failed to load endpoints", Message: err.Error(),
			})
		}

		results := dispatcher.Relay(c.Request().Context(), webhook.EventEmailReceived, email, active)

		return c.JSON(http.StatusOK, models.InboundResponse{
			MessageID:    email.MessageID,
			ParseSuccess: email.ParseSuccess,
			ParseError:   email.ParseError,
			Deliveries:   results,
		})
	}
}
