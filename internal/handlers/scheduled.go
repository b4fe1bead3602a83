package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"mailhook/internal/models"
	"mailhook/internal/scheduler"
)

// CreateScheduledSendHandler accepts a new deferred send
// @Summary Schedule a send
// @Description Creates a scheduled send; resubmitting the same idempotency key returns the original
// @Tags Scheduled
// @Accept json
// @Produce json
// @Param request body scheduler.CreateRequest true "Send to schedule"
// @Success 201 {object} models.ScheduledSend
// @Success 200 {object} models.ScheduledSend
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /api/scheduled-sends [post]
func CreateScheduledSendHandler(service *scheduler.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req scheduler.CreateRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "invalid request body", Message: err.Error(),
			})
		}

		send, created, err := service.Create(c.Request().Context(), &req)
		if err != nil {
			return schedulerError(c, err)
		}

		status := http.StatusCreated
		if !created {
			// Idempotent replay of an earlier request
			status = http.StatusOK
		}
		return c.JSON(status, send)
	}
}

// GetScheduledSendHandler returns one scheduled send
// @Summary Get a scheduled send
// @Tags Scheduled
// @Produce json
// @Param id path string true "Scheduled send ID"
// @Success 200 {object} models.ScheduledSend
// @Failure 404 {object} models.ErrorResponse
// @Router /api/scheduled-sends/{id} [get]
func GetScheduledSendHandler(service *scheduler.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		send, err := service.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return schedulerError(c, err)
		}
		return c.JSON(http.StatusOK, send)
	}
}

// ListScheduledSendsHandler lists scheduled sends by status
// @Summary List scheduled sends
// @Tags Scheduled
// @Produce json
// @Param status query string false "Status filter (default scheduled)"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} models.ScheduledSend
// @Failure 400 {object} models.ErrorResponse
// @Router /api/scheduled-sends [get]
func ListScheduledSendsHandler(service *scheduler.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))
		status := models.ScheduledSendStatus(c.QueryParam("status"))

		sends, err := service.List(c.Request().Context(), status, limit, offset)
		if err != nil {
			return schedulerError(c, err)
		}
		if sends == nil {
			sends = []*models.ScheduledSend{}
		}
		return c.JSON(http.StatusOK, sends)
	}
}

// CancelScheduledSendHandler cancels a pending send
// @Summary Cancel a scheduled send
// @Tags Scheduled
// @Produce json
// @Param id path string true "Scheduled send ID"
// @Success 200 {object} models.ScheduledSend
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/scheduled-sends/{id} [delete]
func CancelScheduledSendHandler(service *scheduler.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		send, err := service.Cancel(c.Request().Context(), c.Param("id"))
		if err != nil {
			return schedulerError(c, err)
		}
		return c.JSON(http.StatusOK, send)
	}
}

// schedulerError maps scheduler errors onto HTTP statuses
func schedulerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, scheduler.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
	case errors.Is(err, scheduler.ErrTooSoon):
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "scheduled time too soon", Message: err.Error()})
	case errors.Is(err, scheduler.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "scheduled send not found", Message: err.Error()})
	case errors.Is(err, scheduler.ErrInvalidState):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Error: "invalid state", Message: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error", Message: err.Error()})
	}
}
