package models

import "time"

// ScheduledSendStatus is the lifecycle state of a deferred send.
// Transitions are one-way: scheduled -> processing -> sent|failed, or
// scheduled -> cancelled. The processing state is the batch processor's
// claim marker; sent, cancelled and failed are terminal.
type ScheduledSendStatus string

const (
	StatusScheduled  ScheduledSendStatus = "scheduled"
	StatusProcessing ScheduledSendStatus = "processing"
	StatusSent       ScheduledSendStatus = "sent"
	StatusCancelled  ScheduledSendStatus = "cancelled"
	StatusFailed     ScheduledSendStatus = "failed"
)

// Valid reports whether s is a known lifecycle state
func (s ScheduledSendStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusProcessing, StatusSent, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// ScheduledSend is a persisted outbound-send intent
type ScheduledSend struct {
	ID             string              `db:"id" json:"id"`
	IdempotencyKey *string             `db:"idempotency_key" json:"idempotency_key,omitempty"`
	FromAddr       string              `db:"from_addr" json:"from"`
	ToAddrs        []string            `db:"-" json:"to"`
	CcAddrs        []string            `db:"-" json:"cc,omitempty"`
	BccAddrs       []string            `db:"-" json:"bcc,omitempty"`
	Subject        string              `db:"subject" json:"subject"`
	TextBody       *string             `db:"text_body" json:"text_body,omitempty"`
	HTMLBody       *string             `db:"html_body" json:"html_body,omitempty"`
	Attachments    []Attachment        `db:"-" json:"attachments,omitempty"`
	ScheduledAt    time.Time           `db:"scheduled_at" json:"scheduled_at"`
	Timezone       string              `db:"timezone" json:"timezone,omitempty"` // display only
	Status         ScheduledSendStatus `db:"status" json:"status"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	SentAt         *time.Time          `db:"sent_at" json:"sent_at,omitempty"`
	CancelledAt    *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	FailedReason   *string             `db:"failed_reason" json:"failed_reason,omitempty"`
}

// BatchResult aggregates one run of the due-send processor
type BatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}
