package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mailhook/internal/models"
)

// DefaultMinLeadTime is the smallest window between "now" and a send time
// that the service accepts. Sends inside the window are rejected with
// ErrTooSoon rather than silently fired immediately.
const DefaultMinLeadTime = 2 * time.Minute

// Store is the persistence surface the scheduler needs. Lookups return
// (nil, nil) when no row matches. UpdateStatus is a compare-and-swap: it
// reports whether the row was in the expected state and got transitioned.
type Store interface {
	Create(ctx context.Context, send *models.ScheduledSend) (bool, error)
	GetByID(ctx context.Context, id string) (*models.ScheduledSend, error)
	ListByStatus(ctx context.Context, status models.ScheduledSendStatus, limit, offset int) ([]*models.ScheduledSend, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledSend, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ScheduledSendStatus) (bool, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkCancelled(ctx context.Context, id string, cancelledAt time.Time) (bool, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.ScheduledSend, error)
}

// CreateRequest carries the fields of a new scheduled send. Exactly one of
// ScheduledAt (RFC 3339) or SendIn (natural language, e.g. "in 20 minutes")
// selects the send time.
type CreateRequest struct {
	From        string              `json:"from"`
	To          []string            `json:"to"`
	Cc          []string            `json:"cc,omitempty"`
	Bcc         []string            `json:"bcc,omitempty"`
	Subject     string              `json:"subject"`
	TextBody    string              `json:"text_body,omitempty"`
	HTMLBody    string              `json:"html_body,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`

	ScheduledAt    string `json:"scheduled_at,omitempty"`
	SendIn         string `json:"send_in,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Service implements scheduled send lifecycle: create with idempotency,
// lookup, listing, and cancellation.
type Service struct {
	store   Store
	minLead time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a scheduler service. A non-positive minLead falls back
// to DefaultMinLeadTime.
func NewService(store Store, minLead time.Duration, logger zerolog.Logger) *Service {
	if minLead <= 0 {
		minLead = DefaultMinLeadTime
	}
	return &Service{
		store:   store,
		minLead: minLead,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates and persists a new scheduled send. When the request
// carries an idempotency key that was already used, the existing send is
// returned and created is false; resubmits are a no-op rather than an error.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (send *models.ScheduledSend, created bool, err error) {
	if err := validateCreate(req); err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	sendAt, err := ResolveSendTime(req.ScheduledAt, req.SendIn, req.Timezone, now)
	if err != nil {
		return nil, false, err
	}
	if sendAt.Before(now.Add(s.minLead)) {
		return nil, false, fmt.Errorf("%w: %s is less than %s from now", ErrTooSoon, sendAt.Format(time.RFC3339), s.minLead)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	record := &models.ScheduledSend{
		ID:          uuid.NewString(),
		FromAddr:    req.From,
		ToAddrs:     req.To,
		CcAddrs:     req.Cc,
		BccAddrs:    req.Bcc,
		Subject:     req.Subject,
		Attachments: req.Attachments,
		ScheduledAt: sendAt,
		Timezone:    req.Timezone,
		Status:      models.StatusScheduled,
		CreatedAt:   now,
	}
	if req.TextBody != "" {
		record.TextBody = &req.TextBody
	}
	if req.HTMLBody != "" {
		record.HTMLBody = &req.HTMLBody
	}
	if req.IdempotencyKey != "" {
		record.IdempotencyKey = &req.IdempotencyKey
	}

	inserted, err := s.store.Create(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create scheduled send: %w", err)
	}
	if !inserted {
		// Lost an insert race on the idempotency key; the winner's row
		// is the canonical one.
		existing, err := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil || existing == nil {
			return nil, false, fmt.Errorf("failed to resolve idempotency conflict: %v", err)
		}
		return existing, false, nil
	}

	s.logger.Info().
		Str("scheduled_send_id", record.ID).
		Time("scheduled_at", record.ScheduledAt).
		Msg("Scheduled send created")
	return record, true, nil
}

// Get returns a scheduled send by id
func (s *Service) Get(ctx context.Context, id string) (*models.ScheduledSend, error) {
	send, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled send: %w", err)
	}
	if send == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return send, nil
}

// List returns scheduled sends filtered by status, newest first. An empty
// status lists pending sends.
func (s *Service) List(ctx context.Context, status models.ScheduledSendStatus, limit, offset int) ([]*models.ScheduledSend, error) {
	if status == "" {
		status = models.StatusScheduled
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByStatus(ctx, status, limit, offset)
}

// Cancel transitions a pending send to cancelled. Sends that are already
// being processed, sent, failed, or cancelled cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*models.ScheduledSend, error) {
	send, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if send.Status != models.StatusScheduled {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, send.Status)
	}

	cancelled, err := s.store.MarkCancelled(ctx, id, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel scheduled send: %w", err)
	}
	if !cancelled {
		// Claimed by the processor between our read and the update.
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, current.Status)
	}

	s.logger.Info().Str("scheduled_send_id", id).Msg("Scheduled send cancelled")
	return s.Get(ctx, id)
}

func validateCreate(req *CreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body is required", ErrInvalidInput)
	}
	if req.From == "" {
		return fmt.Errorf("%w: from address is required", ErrInvalidInput)
	}
	if len(req.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidInput)
	}
	if req.TextBody == "" && req.HTMLBody == "" {
		return fmt.Errorf("%w: a text or html body is required", ErrInvalidInput)
	}
	return nil
}
