package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mailhook/internal/cache"
	"mailhook/internal/dispatch"
	"mailhook/internal/models"
	"mailhook/internal/webhook"
)

// endpointCacheTTL bounds how stale endpoint configuration can be on the
// delivery hot path.
const endpointCacheTTL = 60 * time.Second

const activeEndpointsKey = "endpoints:active"

// CachedEndpointSource wraps an EndpointSource with a short TTL cache so
// every inbound message does not hit the database.
type CachedEndpointSource struct {
	source EndpointSource
	cache  *cache.Cache
}

// NewCachedEndpointSource creates a caching wrapper around source
func NewCachedEndpointSource(source EndpointSource) *CachedEndpointSource {
	return &CachedEndpointSource{source: source, cache: cache.New()}
}

// ListActive returns active endpoints, served from cache when fresh
func (s *CachedEndpointSource) ListActive(ctx context.Context) ([]*models.Endpoint, error) {
	if cached, ok := s.cache.Get(activeEndpointsKey); ok {
		if endpoints, ok := cached.([]*models.Endpoint); ok {
			return endpoints, nil
		}
	}

	endpoints, err := s.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(activeEndpointsKey, endpoints, endpointCacheTTL)
	return endpoints, nil
}

// GetByID returns a single endpoint, served from cache when fresh
func (s *CachedEndpointSource) GetByID(ctx context.Context, id string) (*models.Endpoint, error) {
	key := "endpoints:id:" + id
	if cached, ok := s.cache.Get(key); ok {
		if endpoint, ok := cached.(*models.Endpoint); ok {
			return endpoint, nil
		}
	}

	endpoint, err := s.source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if endpoint != nil {
		s.cache.Set(key, endpoint, endpointCacheTTL)
	}
	return endpoint, nil
}

// TestEndpointHandler delivers a synthetic sample email to one endpoint so
// operators can verify configuration without waiting for real mail
// @Summary Test an endpoint
// @Description Sends a sample email delivery to the endpoint and reports the outcome
// @Tags Endpoints
// @Produce json
// @Param id path string true "Endpoint ID"
// @Success 200 {object} models.DeliveryResult
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/endpoints/{id}/test [post]
func TestEndpointHandler(endpoints EndpointSource, client *dispatch.Client, forwarder *dispatch.Forwarder) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		endpoint, err := endpoints.GetByID(ctx, c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "failed to load endpoint", Message: err.Error(),
			})
		}
		if endpoint == nil {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "endpoint not found",
			})
		}

		sample := webhook.SampleEmail()

		switch endpoint.Type {
		case models.EndpointWebhook:
			payload, headers, err := webhook.Adapt(webhook.EventEmailReceived, sample, endpoint)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
					Error: "failed to build test payload", Message: err.Error(),
				})
			}
			// Single attempt, no retries: a test should report the first
			// failure, not mask it.
			result, _ := client.Deliver(ctx, endpoint, payload, headers)
			return c.JSON(http.StatusOK, result)

		case models.EndpointEmailForward, models.EndpointEmailGroup:
			result := forwarder.Forward(ctx, sample, endpoint)
			return c.JSON(http.StatusOK, result)

		default:
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: "unknown endpoint type", Message: string(endpoint.Type),
			})
		}
	}
}
