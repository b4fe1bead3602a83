package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mailhook/internal/message"
	"mailhook/internal/models"
	"mailhook/internal/transport"
)

const (
	defaultBatchSize       = 100
	defaultSendConcurrency = 4
)

// Processor drains due scheduled sends. Each run claims due rows with a
// compare-and-swap so concurrent runs (overlapping cron ticks, multiple
// replicas) never double-send, then renders and submits each message
// independently: one bad send fails alone and the batch keeps going.
type Processor struct {
	store          Store
	provider       transport.Provider
	batchSize      int
	maxConcurrency int
	logger         zerolog.Logger
}

// NewProcessor creates a due-send processor using the given outbound provider
func NewProcessor(store Store, provider transport.Provider, batchSize, maxConcurrency int, logger zerolog.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxConcurrency <= 0 {
		maxConcurrency = defaultSendConcurrency
	}
	return &Processor{
		store:          store,
		provider:       provider,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
		logger:         logger,
	}
}

// ProcessDue sends every scheduled message due at or before now. The error
// return covers batch-level failures only (listing due rows); per-send
// failures are recorded on the row and counted in the result.
func (p *Processor) ProcessDue(ctx context.Context, now time.Time) (models.BatchResult, error) {
	due, err := p.store.ListDue(ctx, now, p.batchSize)
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("failed to list due sends: %w", err)
	}
	if len(due) == 0 {
		return models.BatchResult{}, nil
	}

	var processed, sent, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrency)
	for _, send := range due {
		send := send
		g.Go(func() error {
			claimed, err := p.store.UpdateStatus(ctx, send.ID, models.StatusScheduled, models.StatusProcessing)
			if err != nil {
				p.logger.Error().Str("scheduled_send_id", send.ID).Err(err).Msg("Failed to claim scheduled send")
				return nil
			}
			if !claimed {
				// Another run got here first, or the send was cancelled.
				return nil
			}
			processed.Add(1)

			if err := p.deliver(ctx, send); err != nil {
				failed.Add(1)
				p.logger.Error().Str("scheduled_send_id", send.ID).Err(err).Msg("Scheduled send failed")
				if markErr := p.store.MarkFailed(ctx, send.ID, err.Error()); markErr != nil {
					p.logger.Error().Str("scheduled_send_id", send.ID).Err(markErr).Msg("Failed to record send failure")
				}
				return nil
			}

			sent.Add(1)
			if err := p.store.MarkSent(ctx, send.ID, time.Now().UTC()); err != nil {
				p.logger.Error().Str("scheduled_send_id", send.ID).Err(err).Msg("Failed to record send success")
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures are per-row

	result := models.BatchResult{
		Processed: int(processed.Load()),
		Sent:      int(sent.Load()),
		Failed:    int(failed.Load()),
	}
	p.logger.Info().
		Int("processed", result.Processed).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Processed due scheduled sends")
	return result, nil
}

func (p *Processor) deliver(ctx context.Context, send *models.ScheduledSend) error {
	raw, err := message.Build(message.BuildParams{
		From:        send.FromAddr,
		To:          send.ToAddrs,
		Cc:          send.CcAddrs,
		Bcc:         send.BccAddrs,
		Subject:     send.Subject,
		Text:        deref(send.TextBody),
		HTML:        deref(send.HTMLBody),
		Attachments: send.Attachments,
	})
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	envelopeTo := append(append(append([]string{}, send.ToAddrs...), send.CcAddrs...), send.BccAddrs...)
	outbound := &transport.OutboundMessage{
		EnvelopeFrom: send.FromAddr,
		EnvelopeTo:   envelopeTo,
		From:         send.FromAddr,
		To:           send.ToAddrs,
		Cc:           send.CcAddrs,
		Bcc:          send.BccAddrs,
		Subject:      send.Subject,
		TextBody:     deref(send.TextBody),
		HTMLBody:     deref(send.HTMLBody),
		Raw:          raw,
	}
	for _, att := range send.Attachments {
		outbound.Attachments = append(outbound.Attachments, transport.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     att.Content,
		})
	}

	providerID, err := p.provider.Send(ctx, outbound)
	if err != nil {
		return fmt.Errorf("provider %s rejected message: %w", p.provider.Name(), err)
	}
	p.logger.Debug().
		Str("scheduled_send_id", send.ID).
		Str("provider_message_id", providerID).
		Msg("Submitted scheduled send")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
