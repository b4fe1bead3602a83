package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mailhook/internal/models"
	"mailhook/internal/webhook"
)

// Dispatcher layers delivery policy over the single-attempt Client: retry
// with exponential backoff and jitter, at most one in-flight retry chain per
// endpoint so event ordering is preserved for consumers that care, and
// bounded cross-endpoint parallelism.
type Dispatcher struct {
	client         *Client
	forwarder      *Forwarder
	logger         zerolog.Logger
	maxConcurrency int
	ratePerSec     int
	burst          int

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher creates a dispatcher. maxConcurrency bounds simultaneous
// deliveries across endpoints; per-endpoint delivery stays serialized and
// paced to ratePerSec chains per second with the given burst. Zero or
// negative values fall back to defaults.
func NewDispatcher(client *Client, forwarder *Forwarder, maxConcurrency, ratePerSec, burst int, logger zerolog.Logger) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &Dispatcher{
		client:         client,
		forwarder:      forwarder,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		ratePerSec:     ratePerSec,
		burst:          burst,
		locks:          make(map[string]*sync.Mutex),
		limiters:       make(map[string]*rate.Limiter),
	}
}

// DeliverWithRetry runs one delivery chain against a webhook endpoint:
// up to endpoint.Retries() additional attempts with exponential backoff,
// serialized per endpoint. The returned result is from the last attempt.
func (d *Dispatcher) DeliverWithRetry(ctx context.Context, endpoint *models.Endpoint, payload []byte, headers map[string]string) models.DeliveryResult {
	lock := d.endpointLock(endpoint.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := d.endpointLimiter(endpoint.ID).Wait(ctx); err != nil {
		return models.DeliveryResult{EndpointID: endpoint.ID, Error: err.Error()}
	}

	var result models.DeliveryResult
	attempts := 0

	operation := func() error {
		attempts++
		var err error
		result, err = d.client.Deliver(ctx, endpoint, payload, headers)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newBackoff(), uint64(endpoint.Retries())),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		d.logger.Error().
			Str("endpoint_id", endpoint.ID).
			Int("attempts", attempts).
			Err(err).
			Msg("Delivery failed after retries")
	}

	result.AttemptsMade = attempts
	return result
}

// Relay fans one canonical email out to all endpoints: webhook endpoints get
// an adapted payload, forward and group endpoints get a forwarded copy.
// Deliveries to different endpoints run in parallel inside a bounded pool;
// one endpoint's failure never affects the others.
func (d *Dispatcher) Relay(ctx context.Context, event string, email *models.CanonicalEmail, endpoints []*models.Endpoint) []models.DeliveryResult {
	results := make([]models.DeliveryResult, len(endpoints))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrency)

	for i, endpoint := range endpoints {
		i, endpoint := i, endpoint
		g.Go(func() error {
			switch endpoint.Type {
			case models.EndpointWebhook:
				payload, headers, err := webhook.Adapt(event, email, endpoint)
				if err != nil {
					results[i] = models.DeliveryResult{EndpointID: endpoint.ID, Error: err.Error()}
					return nil
				}
				results[i] = d.DeliverWithRetry(ctx, endpoint, payload, headers)
			case models.EndpointEmailForward, models.EndpointEmailGroup:
				results[i] = d.forwarder.Forward(ctx, email, endpoint)
			default:
				results[i] = models.DeliveryResult{EndpointID: endpoint.ID, Error: "unknown endpoint type"}
			}
			return nil
		})
	}

	g.Wait() //nolint:errcheck // workers never return errors; results carry failures
	return results
}

func (d *Dispatcher) endpointLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locks[id] == nil {
		d.locks[id] = &sync.Mutex{}
	}
	return d.locks[id]
}

// endpointLimiter paces delivery chains per the configured rate and burst
func (d *Dispatcher) endpointLimiter(id string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.limiters[id] == nil {
		d.limiters[id] = rate.NewLimiter(rate.Limit(d.ratePerSec), d.burst)
	}
	return d.limiters[id]
}

// newBackoff builds the retry schedule: exponential with jitter, capped
func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry count is the only bound
	return b
}
