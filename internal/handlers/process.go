package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mailhook/internal/models"
	"mailhook/internal/scheduler"
)

// ProcessDueHandler triggers one drain of due scheduled sends. External
// cron deployments hit this instead of running the internal ticker.
// @Summary Process due scheduled sends
// @Description Claims and sends every scheduled message that is due
// @Tags Internal
// @Produce json
// @Success 200 {object} models.BatchResult
// @Failure 500 {object} models.ErrorResponse
// @Router /internal/process-due [post]
func ProcessDueHandler(processor *scheduler.Processor) echo.HandlerFunc {
	return func(c echo.Context) error {
		result, err := processor.ProcessDue(c.Request().Context(), time.Now().UTC())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "failed to process due sends", Message: err.Error(),
			})
		}
		return c.JSON(http.StatusOK, result)
	}
}
