package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"mailhook/internal/message"
	"mailhook/internal/models"
	"mailhook/internal/threading"
)

// ThreadPreviewRequest carries a batch of raw messages to group into threads
type ThreadPreviewRequest struct {
	Messages []string `json:"messages"`
}

// ThreadPreviewHandler parses a batch of raw messages and returns the
// conversation threads they form
// @Summary Preview threading for a message batch
// @Description Parses raw MIME messages and groups them into threads with confidence levels
// @Tags Threads
// @Accept json
// @Produce json
// @Param request body ThreadPreviewRequest true "Raw messages to thread"
// @Success 200 {object} models.ThreadPreviewResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/threads/preview [post]
func ThreadPreviewHandler(engine *threading.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req ThreadPreviewRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "invalid request body", Message: err.Error(),
			})
		}
		if len(req.Messages) == 0 {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "at least one message is required",
			})
		}

		emails := make([]models.CanonicalEmail, 0, len(req.Messages))
		for i, raw := range req.Messages {
			email, err := message.Parse([]byte(raw))
			if err != nil {
				return c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error:   "message could not be parsed",
					Message: fmt.Sprintf("message %d: %v", i, err),
				})
			}
			emails = append(emails, *email)
		}

		threads := engine.Group(emails)
		return c.JSON(http.StatusOK, models.ThreadPreviewResponse{
			Threads: threads,
			Count:   len(threads),
		})
	}
}
