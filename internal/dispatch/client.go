// Package dispatch executes webhook and email-forward deliveries with
// timeout, retry and per-endpoint ordering guarantees.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mailhook/internal/models"
)

var (
	// ErrDeliveryTimeout marks a delivery that ran out of time or could not
	// reach the destination at the transport level
	ErrDeliveryTimeout = errors.New("delivery timed out")
	// ErrDeliveryHTTP marks a delivery the destination answered with a
	// non-2xx status
	ErrDeliveryHTTP = errors.New("delivery rejected")
)

// maxResponseExcerpt bounds how much of a destination's response body is
// retained, so adversarial responses cannot grow memory without limit
const maxResponseExcerpt = 1000

// Client issues single delivery attempts over a shared HTTP transport.
// Construct one at process start and pass it by reference; per-endpoint
// timeouts are applied per call.
type Client struct {
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a dispatch client with a pooled transport
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// Deliver performs exactly one HTTP delivery attempt against the endpoint.
// Any non-2xx response or transport failure is a failed result; timeouts are
// reported as a distinct error class from HTTP rejections so callers can
// tell them apart when deciding whether to retry.
func (c *Client) Deliver(ctx context.Context, endpoint *models.Endpoint, payload []byte, headers map[string]string) (models.DeliveryResult, error) {
	result := models.DeliveryResult{
		EndpointID:     endpoint.ID,
		EndpointFormat: string(endpoint.Format),
		DeliveryID:     headers["X-Mailhook-Delivery"],
	}

	ctx, cancel := context.WithTimeout(ctx, endpoint.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	result.ElapsedMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = err.Error()
		if isTimeout(err) {
			result.TimedOut = true
			c.logger.Warn().Str("endpoint_id", endpoint.ID).Int64("elapsed_ms", result.ElapsedMs).Msg("Delivery timed out")
			return result, fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)
		}
		c.logger.Warn().Str("endpoint_id", endpoint.ID).Err(err).Msg("Delivery transport error")
		return result, fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseExcerpt))
	result.StatusCode = resp.StatusCode
	result.ResponseBody = string(excerpt)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Error = fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
		c.logger.Warn().
			Str("endpoint_id", endpoint.ID).
			Int("status", resp.StatusCode).
			Int64("elapsed_ms", result.ElapsedMs).
			Msg("Delivery rejected")
		return result, fmt.Errorf("%w: status %d", ErrDeliveryHTTP, resp.StatusCode)
	}

	result.Success = true
	c.logger.Info().
		Str("endpoint_id", endpoint.ID).
		Int("status", resp.StatusCode).
		Int64("elapsed_ms", result.ElapsedMs).
		Msg("Delivery succeeded")
	return result, nil
}

// isTimeout classifies deadline and transport-level timeout errors
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
